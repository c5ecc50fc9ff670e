package assemblyai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/usecase/ingest"
	"github.com/johnquangdev/meetscribe/pkg/config"
)

// Transcriber turns buffered session audio into speaker segments using
// the AssemblyAI hosted API
type Transcriber struct {
	client        *aai.Client
	languageCode  string
	speakerLabels bool
	logger        *zap.Logger
}

var _ ingest.Transcriber = (*Transcriber)(nil)

// NewTranscriber creates a transcriber from config
func NewTranscriber(cfg *config.Config, logger *zap.Logger) *Transcriber {
	return &Transcriber{
		client:        aai.NewClient(cfg.Assembly.APIKey),
		languageCode:  cfg.Transcribe.LanguageCode,
		speakerLabels: cfg.Transcribe.SpeakerLabels,
		logger:        logger,
	}
}

// Transcribe uploads audio, waits for completion and maps the utterances.
// Transport failures are retried with exponential backoff; a transcript that
// finishes in the error state is not.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format string) ([]ingest.Segment, error) {
	if len(audio) == 0 {
		return nil, nil
	}

	params := &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(t.speakerLabels),
	}
	if t.languageCode != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(t.languageCode)
	} else {
		params.LanguageDetection = aai.Bool(true)
	}

	var transcript aai.Transcript
	submitFn := func() error {
		var err error
		transcript, err = t.client.Transcripts.TranscribeFromReader(ctx, bytes.NewReader(audio), params)
		if err != nil {
			t.logger.Warn("⚠️ AssemblyAI request failed, retrying",
				zap.String("format", format),
				zap.Int("bytes", len(audio)),
				zap.Error(err),
			)
			return err
		}
		if transcript.Status == aai.TranscriptStatusError {
			msg := "transcription failed"
			if transcript.Error != nil {
				msg = *transcript.Error
			}
			return backoff.Permanent(errors.New(msg))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	bo.MaxInterval = 10 * time.Second

	if err := backoff.Retry(submitFn, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("assemblyai: %w", err)
	}

	if transcript.Status != aai.TranscriptStatusCompleted {
		return nil, fmt.Errorf("assemblyai: unexpected transcript status %q", transcript.Status)
	}

	return mapUtterances(transcript), nil
}

func mapUtterances(transcript aai.Transcript) []ingest.Segment {
	lang := string(transcript.LanguageCode)

	segments := make([]ingest.Segment, 0, len(transcript.Utterances))
	for _, u := range transcript.Utterances {
		seg := ingest.Segment{Lang: lang}
		if u.Speaker != nil {
			seg.Speaker = *u.Speaker
		}
		if u.Start != nil {
			seg.StartMs = *u.Start
		}
		if u.End != nil {
			seg.EndMs = *u.End
		}
		if u.Text != nil {
			seg.Text = *u.Text
		}
		if seg.Text == "" {
			continue
		}
		segments = append(segments, seg)
	}

	// Without speaker labels the API returns no utterances; fall back to the full text
	if len(segments) == 0 && transcript.Text != nil && *transcript.Text != "" {
		seg := ingest.Segment{Text: *transcript.Text, Lang: lang}
		if transcript.AudioDuration != nil {
			seg.EndMs = int64(*transcript.AudioDuration) * 1000
		}
		segments = append(segments, seg)
	}
	return segments
}

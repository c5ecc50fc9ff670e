package assemblyai

import (
	"context"
	"encoding/json"
	"testing"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/pkg/config"
)

func decodeTranscript(t *testing.T, payload string) aai.Transcript {
	t.Helper()
	var transcript aai.Transcript
	if err := json.Unmarshal([]byte(payload), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	return transcript
}

func TestMapUtterances_SpeakerSegments(t *testing.T) {
	transcript := decodeTranscript(t, `{
		"status": "completed",
		"language_code": "en_us",
		"utterances": [
			{"speaker": "A", "start": 0, "end": 1200, "text": "good morning"},
			{"speaker": "B", "start": 1300, "end": 2000, "text": ""},
			{"speaker": "B", "start": 2100, "end": 3000, "text": "hi"}
		]
	}`)

	segments := mapUtterances(transcript)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2 (empty text skipped)", len(segments))
	}
	first := segments[0]
	if first.Speaker != "A" || first.StartMs != 0 || first.EndMs != 1200 || first.Text != "good morning" || first.Lang != "en_us" {
		t.Fatalf("first segment = %+v", first)
	}
	if segments[1].Speaker != "B" || segments[1].StartMs != 2100 {
		t.Fatalf("second segment = %+v", segments[1])
	}
}

func TestMapUtterances_FallsBackToFullText(t *testing.T) {
	transcript := decodeTranscript(t, `{"status": "completed", "text": "one long monologue", "audio_duration": 7}`)

	segments := mapUtterances(transcript)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].Text != "one long monologue" || segments[0].EndMs != 7000 {
		t.Fatalf("segment = %+v", segments[0])
	}
}

func TestMapUtterances_Empty(t *testing.T) {
	if segments := mapUtterances(aai.Transcript{}); len(segments) != 0 {
		t.Fatalf("got %d segments, want 0", len(segments))
	}
}

func TestTranscribe_EmptyAudioSkipsAPI(t *testing.T) {
	cfg := &config.Config{}
	cfg.Assembly.APIKey = "test-key"
	tr := NewTranscriber(cfg, zap.NewNop())

	segments, err := tr.Transcribe(context.Background(), nil, "audio/webm")
	if err != nil || segments != nil {
		t.Fatalf("segments = %v, err = %v; want nil, nil", segments, err)
	}
}

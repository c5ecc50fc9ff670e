package ingest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
)

// toUtterances shifts segments by baseMs so offsets are meeting-relative.
// Blank segments are dropped and inverted ranges are clamped.
func toUtterances(segments []Segment, baseMs int64, sessionID uuid.UUID) []*entities.Utterance {
	out := make([]*entities.Utterance, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := seg.StartMs
		if start < 0 {
			start = 0
		}
		end := seg.EndMs
		if end < start {
			end = start
		}

		sid := sessionID
		u := &entities.Utterance{
			SessionID:   &sid,
			StartTimeMs: baseMs + start,
			EndTimeMs:   baseMs + end,
			Text:        text,
		}
		if seg.Speaker != "" {
			speaker := seg.Speaker
			u.SpeakerLabel = &speaker
		}
		if seg.Lang != "" {
			lang := seg.Lang
			u.Lang = &lang
		}
		out = append(out, u)
	}
	return out
}

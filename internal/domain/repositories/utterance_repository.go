package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/johnquangdev/meetscribe/internal/domain/entities"
)

// UtteranceRepository defines the interface for utterance data access
type UtteranceRepository interface {
	// ListByMeeting returns utterances ordered by start_time_ms. A nil final lists both kinds.
	ListByMeeting(ctx context.Context, meetingID uuid.UUID, final *bool) ([]*entities.Utterance, error)

	// ReplaceInterim swaps the interim utterances of one ingest session for a new set
	ReplaceInterim(ctx context.Context, meetingID, sessionID uuid.UUID, utterances []*entities.Utterance) error

	// CommitFinal inserts final utterances and drops interim rows they overlap
	CommitFinal(ctx context.Context, meetingID uuid.UUID, utterances []*entities.Utterance) error

	// MarkFinal promotes interim utterances. Final rows are never written back to interim.
	MarkFinal(ctx context.Context, ids []uuid.UUID) (int64, error)
}

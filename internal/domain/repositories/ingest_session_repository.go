package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/johnquangdev/meetscribe/internal/domain/entities"
)

// IngestSessionRepository defines the interface for ingest session data access
type IngestSessionRepository interface {
	// Create records a new connection
	Create(ctx context.Context, session *entities.IngestSession) error

	// FindByID retrieves an ingest session by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.IngestSession, error)

	// AttachInit stores the init descriptor and the resolved meeting. It fails with
	// entities.ErrMeetingEnded once the meeting has ended.
	AttachInit(ctx context.Context, id, meetingID uuid.UUID, init []byte) error

	// UpdateCounters persists the running byte and frame counters
	UpdateCounters(ctx context.Context, id uuid.UUID, totalBytes, frames int64, lastMessageAt time.Time) error

	// Close marks the session closed with a reason and optional archive object
	Close(ctx context.Context, id uuid.UUID, reason string, audioObject *string, at time.Time) error

	// ListByMeeting lists sessions for a meeting, newest first
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.IngestSession, error)
}

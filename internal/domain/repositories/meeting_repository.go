package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/johnquangdev/meetscribe/internal/domain/entities"
)

// MeetingRepository defines the interface for meeting data access
type MeetingRepository interface {
	// Create creates a new meeting
	Create(ctx context.Context, meeting *entities.Meeting) error

	// FindByID retrieves a meeting by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)

	// List retrieves meetings with filters and pagination
	List(ctx context.Context, filters MeetingFilters) ([]*entities.Meeting, int64, error)

	// End sets end_ts if it is still NULL. Returns false if the meeting was already ended.
	End(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// EndIfIdle ends the meeting when no ingest session other than exclude is open.
	// Returns false if it stayed open or was already ended.
	EndIfIdle(ctx context.Context, id, exclude uuid.UUID, at time.Time) (bool, error)

	// Delete removes a meeting and, by cascade, its utterances and ingest sessions
	Delete(ctx context.Context, id uuid.UUID) error
}

// MeetingFilters represents filter options for listing meetings
type MeetingFilters struct {
	Status *entities.MeetingStatus
	Search string // Search in title
	Limit  int
	Offset int
}

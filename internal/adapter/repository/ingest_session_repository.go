package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	"github.com/johnquangdev/meetscribe/internal/domain/repositories"
)

// IngestSessionRepository implements the ingest session repository interface using GORM
type IngestSessionRepository struct {
	db *gorm.DB
}

var _ repositories.IngestSessionRepository = (*IngestSessionRepository)(nil)

// NewIngestSessionRepository creates a new ingest session repository
func NewIngestSessionRepository(db *gorm.DB) *IngestSessionRepository {
	return &IngestSessionRepository{
		db: db,
	}
}

// Create creates a new ingest session
func (r *IngestSessionRepository) Create(ctx context.Context, session *entities.IngestSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create ingest session: %w", err)
	}
	return nil
}

// FindByID finds an ingest session by ID
func (r *IngestSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.IngestSession, error) {
	var session entities.IngestSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrIngestSessionNotFound
		}
		return nil, fmt.Errorf("failed to find ingest session by ID: %w", err)
	}
	return &session, nil
}

// AttachInit stores the init descriptor and the meeting it resolved to. The
// meeting row is locked and must still be open, so a concurrent EndIfIdle
// either sees this session or ends the meeting first.
func (r *IngestSessionRepository) AttachInit(ctx context.Context, id, meetingID uuid.UUID, init []byte) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meeting, err := lockMeeting(tx, meetingID)
		if err != nil {
			return err
		}
		if meeting.IsEnded() {
			return entities.ErrMeetingEnded
		}

		if err := tx.
			Model(&entities.IngestSession{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"meeting_id": meetingID,
				"init":       datatypes.JSON(init),
			}).Error; err != nil {
			return fmt.Errorf("failed to attach init: %w", err)
		}
		return nil
	})
}

// UpdateCounters persists byte and frame counters
func (r *IngestSessionRepository) UpdateCounters(ctx context.Context, id uuid.UUID, totalBytes, frames int64, lastMessageAt time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&entities.IngestSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_bytes":     totalBytes,
			"frames_received": frames,
			"last_message_at": lastMessageAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}
	return nil
}

// Close marks the session closed. A session is closed at most once.
func (r *IngestSessionRepository) Close(ctx context.Context, id uuid.UUID, reason string, audioObject *string, at time.Time) error {
	updates := map[string]interface{}{
		"closed_at":    at,
		"close_reason": reason,
	}
	if audioObject != nil {
		updates["audio_object"] = *audioObject
	}
	if err := r.db.WithContext(ctx).
		Model(&entities.IngestSession{}).
		Where("id = ? AND closed_at IS NULL", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to close ingest session: %w", err)
	}
	return nil
}

// ListByMeeting lists sessions for a meeting, newest first
func (r *IngestSessionRepository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.IngestSession, error) {
	var sessions []*entities.IngestSession
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("started_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingest sessions: %w", err)
	}
	return sessions, nil
}

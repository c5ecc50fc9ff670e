package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	"github.com/johnquangdev/meetscribe/internal/domain/repositories"
)

// meetingRepository implements the MeetingRepository interface
type meetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) repositories.MeetingRepository {
	return &meetingRepository{db: db}
}

// Create creates a new meeting
func (r *meetingRepository) Create(ctx context.Context, meeting *entities.Meeting) error {
	if err := r.db.WithContext(ctx).Create(meeting).Error; err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// FindByID retrieves a meeting by its ID
func (r *meetingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&meeting).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to find meeting: %w", err)
	}
	return &meeting, nil
}

// List retrieves meetings with filters and pagination
func (r *meetingRepository) List(ctx context.Context, filters repositories.MeetingFilters) ([]*entities.Meeting, int64, error) {
	var meetings []*entities.Meeting
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Meeting{})

	// Apply filters
	if filters.Status != nil {
		switch *filters.Status {
		case entities.MeetingStatusOpen:
			query = query.Where("end_ts IS NULL")
		case entities.MeetingStatusEnded:
			query = query.Where("end_ts IS NOT NULL")
		}
	}
	if filters.Search != "" {
		searchPattern := fmt.Sprintf("%%%s%%", strings.ToLower(filters.Search))
		query = query.Where("LOWER(title) LIKE ?", searchPattern)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("start_ts DESC")

	// Apply pagination
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	err := query.Find(&meetings).Error
	return meetings, total, err
}

// End sets end_ts once
func (r *meetingRepository) End(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return endMeeting(r.db.WithContext(ctx), id, at)
}

// EndIfIdle ends the meeting unless an ingest session other than exclude is
// still open. The meeting row stays locked between the count and the update
// so a session cannot join in between.
func (r *meetingRepository) EndIfIdle(ctx context.Context, id, exclude uuid.UUID, at time.Time) (bool, error) {
	var ended bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meeting, err := lockMeeting(tx, id)
		if err != nil {
			return err
		}
		if meeting.IsEnded() {
			return nil
		}

		var open int64
		if err := tx.Model(&entities.IngestSession{}).
			Where("meeting_id = ? AND closed_at IS NULL AND id <> ?", id, exclude).
			Count(&open).Error; err != nil {
			return fmt.Errorf("failed to count open sessions: %w", err)
		}
		if open > 0 {
			return nil
		}

		ended, err = endMeeting(tx, id, at)
		return err
	})
	return ended, err
}

func endMeeting(db *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	result := db.
		Model(&entities.Meeting{}).
		Where("id = ? AND end_ts IS NULL", id).
		Update("end_ts", at)
	if result.Error != nil {
		return false, fmt.Errorf("failed to end meeting: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// lockMeeting loads the meeting row FOR UPDATE inside tx
func lockMeeting(tx *gorm.DB, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&meeting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to lock meeting: %w", err)
	}
	return &meeting, nil
}

// Delete removes a meeting
func (r *meetingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&entities.Meeting{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete meeting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entities.ErrMeetingNotFound
	}
	return nil
}

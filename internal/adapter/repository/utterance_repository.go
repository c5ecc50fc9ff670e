package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	"github.com/johnquangdev/meetscribe/internal/domain/repositories"
)

// UtteranceRepository handles utterance data operations
type UtteranceRepository struct {
	db *gorm.DB
}

var _ repositories.UtteranceRepository = (*UtteranceRepository)(nil)

// NewUtteranceRepository creates a new utterance repository
func NewUtteranceRepository(db *gorm.DB) *UtteranceRepository {
	return &UtteranceRepository{db: db}
}

// ListByMeeting lists a meeting's utterances in start_time_ms order
func (r *UtteranceRepository) ListByMeeting(ctx context.Context, meetingID uuid.UUID, final *bool) ([]*entities.Utterance, error) {
	var utterances []*entities.Utterance
	query := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID)
	if final != nil {
		query = query.Where("is_final = ?", *final)
	}
	if err := query.Order("start_time_ms ASC").Order("end_time_ms ASC").Find(&utterances).Error; err != nil {
		return nil, fmt.Errorf("failed to list utterances: %w", err)
	}
	return utterances, nil
}

// ReplaceInterim deletes the session's interim rows and inserts the new set
func (r *UtteranceRepository) ReplaceInterim(ctx context.Context, meetingID, sessionID uuid.UUID, utterances []*entities.Utterance) error {
	for _, u := range utterances {
		if u == nil {
			return errors.New("utterance cannot be nil")
		}
		u.MeetingID = meetingID
		u.SessionID = &sessionID
		u.IsFinal = false
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("meeting_id = ? AND session_id = ? AND is_final = ?", meetingID, sessionID, false).
			Delete(&entities.Utterance{}).Error; err != nil {
			return fmt.Errorf("failed to clear interim utterances: %w", err)
		}
		if len(utterances) == 0 {
			return nil
		}
		if err := tx.Create(&utterances).Error; err != nil {
			return fmt.Errorf("failed to insert interim utterances: %w", err)
		}
		return nil
	})
}

// CommitFinal stores final utterances. An interim row carrying exactly the
// same utterance is promoted in place; other interim rows overlapping the
// range covered by the new set are superseded and removed.
func (r *UtteranceRepository) CommitFinal(ctx context.Context, meetingID uuid.UUID, utterances []*entities.Utterance) error {
	if len(utterances) == 0 {
		return nil
	}

	var lo, hi int64
	for i, u := range utterances {
		if u == nil {
			return errors.New("utterance cannot be nil")
		}
		if err := u.Validate(); err != nil {
			return err
		}
		u.MeetingID = meetingID
		u.IsFinal = true
		if i == 0 || u.StartTimeMs < lo {
			lo = u.StartTimeMs
		}
		if i == 0 || u.EndTimeMs > hi {
			hi = u.EndTimeMs
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var interim []*entities.Utterance
		if err := tx.Where("meeting_id = ? AND is_final = ?", meetingID, false).Find(&interim).Error; err != nil {
			return fmt.Errorf("failed to load interim utterances: %w", err)
		}

		matched := make(map[uuid.UUID]bool)
		var promote []uuid.UUID
		fresh := make([]*entities.Utterance, 0, len(utterances))
		for _, u := range utterances {
			if row := findSame(interim, u, matched); row != nil {
				matched[row.ID] = true
				promote = append(promote, row.ID)
				u.ID = row.ID
				continue
			}
			fresh = append(fresh, u)
		}

		var superseded []uuid.UUID
		for _, row := range interim {
			if !matched[row.ID] && row.Overlaps(lo, hi) {
				superseded = append(superseded, row.ID)
			}
		}
		if len(superseded) > 0 {
			if err := tx.Where("id IN ?", superseded).Delete(&entities.Utterance{}).Error; err != nil {
				return fmt.Errorf("failed to supersede interim utterances: %w", err)
			}
		}

		if _, err := markFinal(tx, promote); err != nil {
			return err
		}
		if len(fresh) == 0 {
			return nil
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return fmt.Errorf("failed to insert final utterances: %w", err)
		}
		return nil
	})
}

// MarkFinal promotes interim rows. The is_final = false guard keeps the
// update forward-only.
func (r *UtteranceRepository) MarkFinal(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return markFinal(r.db.WithContext(ctx), ids)
}

func markFinal(db *gorm.DB, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.
		Model(&entities.Utterance{}).
		Where("id IN ? AND is_final = ?", ids, false).
		Update("is_final", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark utterances final: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// findSame returns the first unmatched interim row identical to u
func findSame(interim []*entities.Utterance, u *entities.Utterance, matched map[uuid.UUID]bool) *entities.Utterance {
	for _, row := range interim {
		if !matched[row.ID] && row.SameAs(u) {
			return row
		}
	}
	return nil
}

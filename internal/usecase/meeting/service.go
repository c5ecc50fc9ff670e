package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	"github.com/johnquangdev/meetscribe/internal/domain/repositories"
)

// Service defines the interface for the meeting read/delete use case
type Service interface {
	// GetMeeting retrieves a meeting by ID
	GetMeeting(ctx context.Context, meetingID uuid.UUID) (*entities.Meeting, error)

	// ListMeetings retrieves meetings with filters
	ListMeetings(ctx context.Context, filters repositories.MeetingFilters) ([]*entities.Meeting, int64, error)

	// ListUtterances returns a meeting's transcript in start order
	ListUtterances(ctx context.Context, meetingID uuid.UUID, final *bool) ([]*entities.Utterance, error)

	// ListSessions returns the ingest sessions of a meeting with archived audio links
	ListSessions(ctx context.Context, meetingID uuid.UUID) ([]SessionView, error)

	// DeleteMeeting removes a meeting, its utterances, sessions and archived audio
	DeleteMeeting(ctx context.Context, meetingID uuid.UUID) error
}

// Ensure MeetingService implements Service interface
var _ Service = (*MeetingService)(nil)

// AudioStore is the part of object storage the meeting API needs
type AudioStore interface {
	GetFileURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	RemovePrefix(ctx context.Context, prefix string) error
}

// SessionView is an ingest session plus a temporary audio link
type SessionView struct {
	Session  *entities.IngestSession
	AudioURL string
}

// MeetingService handles meeting business logic
type MeetingService struct {
	meetingRepo   repositories.MeetingRepository
	utteranceRepo repositories.UtteranceRepository
	sessionRepo   repositories.IngestSessionRepository
	audio         AudioStore
	logger        *zap.Logger
}

// NewMeetingService creates a new meeting service. audio may be nil.
func NewMeetingService(
	meetingRepo repositories.MeetingRepository,
	utteranceRepo repositories.UtteranceRepository,
	sessionRepo repositories.IngestSessionRepository,
	audio AudioStore,
	logger *zap.Logger,
) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{
		meetingRepo:   meetingRepo,
		utteranceRepo: utteranceRepo,
		sessionRepo:   sessionRepo,
		audio:         audio,
		logger:        logger,
	}
}

// GetMeeting retrieves a meeting by ID
func (s *MeetingService) GetMeeting(ctx context.Context, meetingID uuid.UUID) (*entities.Meeting, error) {
	return s.meetingRepo.FindByID(ctx, meetingID)
}

// ListMeetings retrieves meetings with filters
func (s *MeetingService) ListMeetings(ctx context.Context, filters repositories.MeetingFilters) ([]*entities.Meeting, int64, error) {
	return s.meetingRepo.List(ctx, filters)
}

// ListUtterances returns the transcript of an existing meeting
func (s *MeetingService) ListUtterances(ctx context.Context, meetingID uuid.UUID, final *bool) ([]*entities.Utterance, error) {
	if _, err := s.meetingRepo.FindByID(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.utteranceRepo.ListByMeeting(ctx, meetingID, final)
}

// ListSessions lists ingest sessions and signs their audio objects
func (s *MeetingService) ListSessions(ctx context.Context, meetingID uuid.UUID) ([]SessionView, error) {
	if _, err := s.meetingRepo.FindByID(ctx, meetingID); err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		view := SessionView{Session: sess}
		if s.audio != nil && sess.AudioObject != nil {
			url, err := s.audio.GetFileURL(ctx, *sess.AudioObject, time.Hour)
			if err != nil {
				s.logger.Warn("⚠️ Failed to sign audio URL",
					zap.String("session_id", sess.ID.String()),
					zap.Error(err),
				)
			} else {
				view.AudioURL = url
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// DeleteMeeting deletes the meeting row; utterances and sessions go by cascade
func (s *MeetingService) DeleteMeeting(ctx context.Context, meetingID uuid.UUID) error {
	if err := s.meetingRepo.Delete(ctx, meetingID); err != nil {
		return err
	}

	if s.audio != nil {
		prefix := fmt.Sprintf("meetings/%s/", meetingID)
		if err := s.audio.RemovePrefix(ctx, prefix); err != nil {
			s.logger.Warn("⚠️ Failed to remove archived audio",
				zap.String("meeting_id", meetingID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("🗑️ Meeting deleted", zap.String("meeting_id", meetingID.String()))
	return nil
}

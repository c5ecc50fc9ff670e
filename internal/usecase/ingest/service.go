package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	"github.com/johnquangdev/meetscribe/internal/domain/repositories"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/cache"
	"github.com/johnquangdev/meetscribe/pkg/ingestproto"
)

// Service defines the interface for the ingestion use case
type Service interface {
	// Open registers a new ingestion connection
	Open(ctx context.Context, input OpenInput) (*Session, error)

	// Stats returns counters for live and recent connections keyed by connection id
	Stats(ctx context.Context) (map[string]ingestproto.Stats, error)

	// Shutdown closes every live session with the server_shutdown reason
	Shutdown(ctx context.Context) error
}

// Ensure IngestService implements Service interface
var _ Service = (*IngestService)(nil)

// Segment is one recognized stretch of speech, relative to the start of the audio
type Segment struct {
	Speaker string
	StartMs int64
	EndMs   int64
	Text    string
	Lang    string
}

// Transcriber turns buffered session audio into segments
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) ([]Segment, error)
}

// AudioArchive stores the raw audio of a closed session
type AudioArchive interface {
	ArchiveAudio(ctx context.Context, meetingID, sessionID uuid.UUID, data []byte, contentType string) (string, error)
}

// Options tunes ingestion behaviour
type Options struct {
	AckEveryFrames  int
	InterimFrames   int
	FinalizeTimeout time.Duration
}

// OpenInput carries the session context known at upgrade time
type OpenInput struct {
	Remote    string
	MeetingID *uuid.UUID
	Title     string
	MeetURL   string
}

// IngestService handles ingestion business logic
type IngestService struct {
	meetingRepo   repositories.MeetingRepository
	utteranceRepo repositories.UtteranceRepository
	sessionRepo   repositories.IngestSessionRepository
	stats         cache.StatsStore
	archive       AudioArchive
	transcriber   Transcriber
	logger        *zap.Logger
	opts          Options
	now           func() time.Time

	mu   sync.Mutex
	live map[uuid.UUID]*Session
}

// NewIngestService creates a new ingestion service
func NewIngestService(
	meetingRepo repositories.MeetingRepository,
	utteranceRepo repositories.UtteranceRepository,
	sessionRepo repositories.IngestSessionRepository,
	stats cache.StatsStore,
	logger *zap.Logger,
	opts Options,
) *IngestService {
	if opts.AckEveryFrames <= 0 {
		opts.AckEveryFrames = 20
	}
	if opts.FinalizeTimeout <= 0 {
		opts.FinalizeTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		meetingRepo:   meetingRepo,
		utteranceRepo: utteranceRepo,
		sessionRepo:   sessionRepo,
		stats:         stats,
		logger:        logger,
		opts:          opts,
		now:           func() time.Time { return time.Now().UTC() },
		live:          make(map[uuid.UUID]*Session),
	}
}

// WithArchive enables archiving of session audio
func (s *IngestService) WithArchive(archive AudioArchive) *IngestService {
	s.archive = archive
	return s
}

// WithTranscriber enables utterance derivation
func (s *IngestService) WithTranscriber(t Transcriber) *IngestService {
	s.transcriber = t
	return s
}

// Open records a new connection and returns its session
func (s *IngestService) Open(ctx context.Context, input OpenInput) (*Session, error) {
	row := &entities.IngestSession{
		Remote:    input.Remote,
		StartedAt: s.now(),
	}
	if err := s.sessionRepo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to open ingest session: %w", err)
	}

	sess := newSession(s, row, input)

	s.mu.Lock()
	s.live[row.ID] = sess
	s.mu.Unlock()

	s.putStats(ctx, sess.snapshot())

	s.logger.Info("🔌 Ingest connection opened",
		zap.String("session_id", row.ID.String()),
		zap.String("remote", input.Remote),
	)
	return sess, nil
}

// Stats returns counters keyed by connection id
func (s *IngestService) Stats(ctx context.Context) (map[string]ingestproto.Stats, error) {
	list, err := s.stats.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ingestproto.Stats, len(list))
	for _, st := range list {
		out[st.ID] = st
	}
	return out, nil
}

// Shutdown closes all live sessions
func (s *IngestService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.live))
	for _, sess := range s.live {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var firstErr error
	for _, sess := range sessions {
		if err := sess.Close(ctx, entities.CloseReasonServerShutdown); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *IngestService) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

func (s *IngestService) putStats(ctx context.Context, st ingestproto.Stats) {
	if err := s.stats.Put(ctx, st); err != nil {
		s.logger.Warn("⚠️ Failed to store ingest stats",
			zap.String("session_id", st.ID),
			zap.Error(err),
		)
	}
}

// resolveMeeting resumes an open meeting or creates a new one
func (s *IngestService) resolveMeeting(ctx context.Context, input OpenInput) (*entities.Meeting, error) {
	if input.MeetingID != nil {
		meeting, err := s.meetingRepo.FindByID(ctx, *input.MeetingID)
		if err != nil {
			return nil, err
		}
		if meeting.IsEnded() {
			return nil, entities.ErrMeetingEnded
		}
		return meeting, nil
	}

	meeting := &entities.Meeting{
		Title:   input.Title,
		StartTS: s.now(),
	}
	if input.MeetURL != "" {
		meetURL := input.MeetURL
		meeting.MeetURL = &meetURL
	}
	if err := s.meetingRepo.Create(ctx, meeting); err != nil {
		return nil, err
	}

	s.logger.Info("📝 Meeting created for ingest session",
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("title", meeting.Title),
	)
	return meeting, nil
}

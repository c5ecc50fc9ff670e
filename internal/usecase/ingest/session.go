package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
	"github.com/johnquangdev/meetscribe/pkg/ingestproto"
	"github.com/johnquangdev/meetscribe/pkg/jobcontext"
)

// Session is one ingestion connection. HandleInit, HandleFrame and
// HandleText are called from the connection's read loop; Close may be
// called from any goroutine.
type Session struct {
	svc   *IngestService
	id    uuid.UUID
	input OpenInput

	startedAt time.Time

	mu            sync.Mutex
	init          *ingestproto.Init
	meeting       *entities.Meeting
	initAt        time.Time
	buf           bytes.Buffer
	totalBytes    int64
	frames        int64
	lastMessageAt *time.Time
	closed        bool
	closeReason   *string

	interimBusy atomic.Bool
	interimWG   sync.WaitGroup

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newSession(svc *IngestService, row *entities.IngestSession, input OpenInput) *Session {
	return &Session{
		svc:       svc,
		id:        row.ID,
		input:     input,
		startedAt: row.StartedAt,
		done:      make(chan struct{}),
	}
}

// ID returns the connection id
func (s *Session) ID() uuid.UUID {
	return s.id
}

// MeetingID returns the meeting the session resolved to at init
func (s *Session) MeetingID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meeting == nil {
		return uuid.Nil, false
	}
	return s.meeting.ID, true
}

// Done is closed once Close has started
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// HandleInit validates the first message and binds the session to a meeting
func (s *Session) HandleInit(ctx context.Context, raw []byte) (ingestproto.Init, error) {
	init, err := ingestproto.ParseInit(raw)
	if err != nil {
		if errors.Is(err, ingestproto.ErrNotJSON) || errors.Is(err, ingestproto.ErrNotInit) {
			return ingestproto.Init{}, fmt.Errorf("%w: %v", usecaseErrors.ErrInitRequired, err)
		}
		return ingestproto.Init{}, fmt.Errorf("%w: %v", usecaseErrors.ErrInitInvalid, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ingestproto.Init{}, usecaseErrors.ErrSessionClosed
	}
	if s.init != nil {
		s.mu.Unlock()
		return ingestproto.Init{}, usecaseErrors.ErrConflict
	}
	s.mu.Unlock()

	meeting, err := s.svc.resolveMeeting(ctx, s.input)
	if err != nil {
		return ingestproto.Init{}, err
	}

	encoded, err := init.Marshal()
	if err != nil {
		return ingestproto.Init{}, err
	}
	if err := s.svc.sessionRepo.AttachInit(ctx, s.id, meeting.ID, encoded); err != nil {
		return ingestproto.Init{}, err
	}

	now := s.svc.now()
	s.mu.Lock()
	s.init = &init
	s.meeting = meeting
	s.initAt = now
	s.lastMessageAt = &now
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.svc.putStats(ctx, snap)

	s.svc.logger.Info("✅ Ingest init accepted",
		zap.String("session_id", s.id.String()),
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("format", init.Format),
		zap.Int("timeslice_ms", init.TimesliceMs),
	)
	return init, nil
}

// HandleFrame appends one binary segment in arrival order. It returns the
// advisory message to send back, or "" when none is due.
func (s *Session) HandleFrame(ctx context.Context, data []byte) (string, error) {
	now := s.svc.now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", usecaseErrors.ErrSessionClosed
	}
	if s.init == nil {
		s.mu.Unlock()
		return "", usecaseErrors.ErrNotInitialized
	}
	s.buf.Write(data)
	s.totalBytes += int64(len(data))
	s.frames++
	s.lastMessageAt = &now
	frames, total := s.frames, s.totalBytes
	snap := s.snapshotLocked()
	if s.interimDue(frames) {
		s.startInterimLocked()
	}
	s.mu.Unlock()

	s.svc.putStats(ctx, snap)

	if frames%int64(s.svc.opts.AckEveryFrames) != 0 {
		return "", nil
	}
	if err := s.svc.sessionRepo.UpdateCounters(ctx, s.id, total, frames, now); err != nil {
		s.svc.logger.Warn("⚠️ Failed to persist ingest counters",
			zap.String("session_id", s.id.String()),
			zap.Error(err),
		)
	}
	return ingestproto.FramesAck(frames), nil
}

// HandleText answers a text message received after init
func (s *Session) HandleText(raw []byte) string {
	now := s.svc.now()
	s.mu.Lock()
	s.lastMessageAt = &now
	s.mu.Unlock()

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ingestproto.MsgTextNonJSON
	}
	return ingestproto.MsgUnknownText
}

// Close ends the session: counters are persisted, audio archived, the final
// transcript committed and the meeting ended when no other session is open.
// Only the first call does work; later calls return the first result.
func (s *Session) Close(ctx context.Context, reason string) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.closeReason = &reason
		s.mu.Unlock()
		close(s.done)

		s.closeErr = s.finalize(reason)
		s.svc.forget(s.id)
	})
	return s.closeErr
}

func (s *Session) finalize(reason string) error {
	jobCtx, cancel := jobcontext.JobBegin(context.Background(), s.id, "ingest.finalize", s.svc.opts.FinalizeTimeout)
	defer cancel()

	s.interimWG.Wait()

	s.mu.Lock()
	audio := bytes.Clone(s.buf.Bytes())
	total, frames := s.totalBytes, s.frames
	last := s.lastMessageAt
	meeting := s.meeting
	init := s.init
	initAt := s.initAt
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log := s.svc.logger.With(
		zap.String("session_id", s.id.String()),
		zap.String("reason", reason),
	)

	lastAt := s.svc.now()
	if last != nil {
		lastAt = *last
	}
	if err := jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
		return s.svc.sessionRepo.UpdateCounters(ctx, s.id, total, frames, lastAt)
	}); err != nil {
		log.Warn("⚠️ Failed to persist final counters", zap.Error(err))
	}

	var audioObject *string
	if meeting != nil && len(audio) > 0 {
		if s.svc.archive != nil {
			objectName, err := s.svc.archive.ArchiveAudio(jobCtx, meeting.ID, s.id, audio, init.Format)
			if err != nil {
				log.Error("❌ Failed to archive session audio", zap.Error(err))
			} else {
				audioObject = &objectName
			}
		}
		if s.svc.transcriber != nil {
			s.commitFinal(jobCtx, log, meeting, initAt, audio, init.Format)
		}
	}

	var firstErr error
	if err := jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
		return s.svc.sessionRepo.Close(ctx, s.id, reason, audioObject, s.svc.now())
	}); err != nil {
		log.Error("❌ Failed to close ingest session", zap.Error(err))
		firstErr = err
	}

	if meeting != nil {
		if err := s.endMeetingIfIdle(jobCtx, meeting.ID); err != nil {
			log.Error("❌ Failed to end meeting", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	snap.Closed = true
	snap.CloseReason = &reason
	s.svc.putStats(jobCtx, snap)

	log.Info("🔒 Ingest connection closed",
		zap.Int64("frames_received", frames),
		zap.Int64("total_bytes", total),
	)
	return firstErr
}

func (s *Session) endMeetingIfIdle(ctx context.Context, meetingID uuid.UUID) error {
	return jobcontext.JobEnd(ctx, func(ctx context.Context) error {
		ended, err := s.svc.meetingRepo.EndIfIdle(ctx, meetingID, s.id, s.svc.now())
		if err != nil {
			return err
		}
		if ended {
			s.svc.logger.Info("🏁 Meeting ended",
				zap.String("meeting_id", meetingID.String()),
			)
		}
		return nil
	})
}

func (s *Session) commitFinal(ctx context.Context, log *zap.Logger, meeting *entities.Meeting, initAt time.Time, audio []byte, format string) {
	segments, err := s.svc.transcriber.Transcribe(ctx, audio, format)
	if err != nil {
		log.Error("❌ Final transcription failed, interim utterances kept", zap.Error(err))
		return
	}

	utterances := toUtterances(segments, meeting.OffsetMs(initAt), s.id)
	if err := jobcontext.JobEnd(ctx, func(ctx context.Context) error {
		if err := s.svc.utteranceRepo.CommitFinal(ctx, meeting.ID, utterances); err != nil {
			return err
		}
		return s.svc.utteranceRepo.ReplaceInterim(ctx, meeting.ID, s.id, nil)
	}); err != nil {
		log.Error("❌ Failed to store final utterances", zap.Error(err))
		return
	}

	log.Info("✅ Final utterances stored",
		zap.String("meeting_id", meeting.ID.String()),
		zap.Int("utterances", len(utterances)),
	)
}

// interimDue reports whether an interim pass should start at this frame count
func (s *Session) interimDue(frames int64) bool {
	every := s.svc.opts.InterimFrames
	return every > 0 && s.svc.transcriber != nil && frames%int64(every) == 0
}

// startInterimLocked runs at most one interim pass at a time. Callers hold
// s.mu and have checked the session is open, so Close cannot be waiting on
// interimWG yet.
func (s *Session) startInterimLocked() {
	if !s.interimBusy.CompareAndSwap(false, true) {
		return
	}
	s.interimWG.Add(1)

	audio := bytes.Clone(s.buf.Bytes())
	meeting := s.meeting
	initAt := s.initAt
	format := s.init.Format

	go func() {
		defer s.interimWG.Done()
		defer s.interimBusy.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.svc.opts.FinalizeTimeout)
		defer cancel()

		segments, err := s.svc.transcriber.Transcribe(ctx, audio, format)
		if err != nil {
			s.svc.logger.Warn("⚠️ Interim transcription failed",
				zap.String("session_id", s.id.String()),
				zap.Error(err),
			)
			return
		}

		// The final pass owns the transcript once the session is closing
		select {
		case <-s.done:
			return
		default:
		}

		utterances := toUtterances(segments, meeting.OffsetMs(initAt), s.id)
		if err := s.svc.utteranceRepo.ReplaceInterim(ctx, meeting.ID, s.id, utterances); err != nil {
			s.svc.logger.Warn("⚠️ Failed to store interim utterances",
				zap.String("session_id", s.id.String()),
				zap.Error(err),
			)
		}
	}()
}

func (s *Session) snapshot() ingestproto.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() ingestproto.Stats {
	st := ingestproto.Stats{
		ID:             s.id.String(),
		TotalBytes:     s.totalBytes,
		FramesReceived: s.frames,
		StartedAt:      s.startedAt,
		Closed:         s.closed,
		Remote:         s.input.Remote,
	}
	if s.init != nil {
		init := *s.init
		st.Init = &init
	}
	if s.meeting != nil {
		st.MeetingID = s.meeting.ID.String()
	}
	if s.lastMessageAt != nil {
		last := *s.lastMessageAt
		st.LastMessageAt = &last
	}
	if s.closeReason != nil {
		reason := *s.closeReason
		st.CloseReason = &reason
	}
	return st
}

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/johnquangdev/meetscribe/internal/adapter/repository"
	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	"github.com/johnquangdev/meetscribe/internal/domain/repositories"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/cache"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
	"github.com/johnquangdev/meetscribe/pkg/ingestproto"
)

const validInit = `{"type":"init","format":"audio/webm;codecs=opus","timeslice_ms":500}`

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeArchive) ArchiveAudio(_ context.Context, meetingID, sessionID uuid.UUID, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	name := fmt.Sprintf("meetings/%s/%s.webm", meetingID, sessionID)
	f.objects[name] = bytes.Clone(data)
	return name, nil
}

type fakeTranscriber struct {
	mu       sync.Mutex
	calls    int
	segments []Segment
	err      error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) ([]Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.segments, f.err
}

// pausingStats holds the first stats write for an open session's first frame
// until resume is closed
type pausingStats struct {
	cache.StatsStore
	once   sync.Once
	paused chan struct{}
	resume chan struct{}
}

func (p *pausingStats) Put(ctx context.Context, st ingestproto.Stats) error {
	if st.FramesReceived == 1 && !st.Closed {
		p.once.Do(func() {
			close(p.paused)
			<-p.resume
		})
	}
	return p.StatsStore.Put(ctx, st)
}

// meetingsAfterFind runs afterFind once, right after the first meeting lookup
type meetingsAfterFind struct {
	repositories.MeetingRepository
	once      sync.Once
	afterFind func()
}

func (m *meetingsAfterFind) FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	meeting, err := m.MeetingRepository.FindByID(ctx, id)
	m.once.Do(m.afterFind)
	return meeting, err
}

type fixture struct {
	db      *gorm.DB
	svc     *IngestService
	clock   time.Time
	archive *fakeArchive
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&entities.Meeting{}, &entities.Utterance{}, &entities.IngestSession{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stats := cache.NewMemoryStatsStore(time.Hour)
	t.Cleanup(func() { stats.Close() })

	f := &fixture{
		db:      db,
		clock:   time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC),
		archive: &fakeArchive{},
	}
	f.svc = NewIngestService(
		repository.NewMeetingRepository(db),
		repository.NewUtteranceRepository(db),
		repository.NewIngestSessionRepository(db),
		stats,
		nil,
		opts,
	).WithArchive(f.archive)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) meeting(t *testing.T, id uuid.UUID) *entities.Meeting {
	t.Helper()
	var m entities.Meeting
	if err := f.db.First(&m, "id = ?", id).Error; err != nil {
		t.Fatalf("load meeting: %v", err)
	}
	return &m
}

func TestSession_InitThenFrames(t *testing.T) {
	f := newFixture(t, Options{AckEveryFrames: 20})
	ctx := context.Background()

	sess, err := f.svc.Open(ctx, OpenInput{Remote: "127.0.0.1:4000", Title: "Standup", MeetURL: "https://meet.google.com/abc-defg-hij"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	init, err := sess.HandleInit(ctx, []byte(validInit))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if init.TimesliceMs != 500 || init.Format != ingestproto.DefaultFormat {
		t.Errorf("init = %+v", init)
	}
	meetingID, ok := sess.MeetingID()
	if !ok {
		t.Fatal("session not bound to a meeting")
	}
	m := f.meeting(t, meetingID)
	if m.Title != "Standup" || m.MeetURL == nil || m.EndTS != nil {
		t.Errorf("meeting = %+v", m)
	}

	var want bytes.Buffer
	var acks []string
	for i := 0; i < 45; i++ {
		chunk := []byte(fmt.Sprintf("chunk-%02d;", i))
		want.Write(chunk)
		ack, err := sess.HandleFrame(ctx, chunk)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if ack != "" {
			acks = append(acks, ack)
		}
	}
	if len(acks) != 2 || acks[0] != "ingest:frames=20" || acks[1] != "ingest:frames=40" {
		t.Errorf("acks = %v", acks)
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	st := stats[sess.ID().String()]
	if st.FramesReceived != 45 || st.TotalBytes != int64(want.Len()) || st.Init == nil || st.Closed {
		t.Errorf("stats = %+v", st)
	}

	f.clock = f.clock.Add(30 * time.Second)
	if err := sess.Close(ctx, entities.CloseReasonClientClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	m = f.meeting(t, meetingID)
	if m.EndTS == nil {
		t.Error("meeting should end when its only session closes")
	}

	var row entities.IngestSession
	if err := f.db.First(&row, "id = ?", sess.ID()).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if row.IsOpen() || row.FramesReceived != 45 || row.AudioObject == nil {
		t.Errorf("session row = %+v", row)
	}
	if got := f.archive.objects[*row.AudioObject]; !bytes.Equal(got, want.Bytes()) {
		t.Errorf("archived audio out of order or incomplete: %q", got)
	}

	stats, _ = f.svc.Stats(ctx)
	if st := stats[sess.ID().String()]; !st.Closed || st.CloseReason == nil || *st.CloseReason != entities.CloseReasonClientClosed {
		t.Errorf("closed stats = %+v", st)
	}
}

func TestSession_RejectsBadFirstMessage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		msg  string
		want error
	}{
		{name: "not json", msg: "hello", want: usecaseErrors.ErrInitRequired},
		{name: "other type", msg: `{"type":"ping"}`, want: usecaseErrors.ErrInitRequired},
		{name: "bad timeslice", msg: `{"type":"init","format":"audio/webm","timeslice_ms":0}`, want: usecaseErrors.ErrInitInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := f.svc.Open(ctx, OpenInput{Remote: "r"})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer sess.Close(ctx, entities.CloseReasonInitRequired)

			if _, err := sess.HandleInit(ctx, []byte(tt.msg)); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if _, ok := sess.MeetingID(); ok {
				t.Error("rejected init must not create a meeting")
			}
			if _, err := sess.HandleFrame(ctx, []byte("x")); !errors.Is(err, usecaseErrors.ErrNotInitialized) {
				t.Errorf("frame before init: %v", err)
			}
		})
	}

	var count int64
	f.db.Model(&entities.Meeting{}).Count(&count)
	if count != 0 {
		t.Errorf("meetings created = %d, want 0", count)
	}
}

func TestSession_MeetingStaysOpenWhileAnotherSessionIsActive(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, _ := f.svc.Open(ctx, OpenInput{Remote: "a"})
	if _, err := first.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init first: %v", err)
	}
	meetingID, _ := first.MeetingID()

	second, _ := f.svc.Open(ctx, OpenInput{Remote: "b", MeetingID: &meetingID})
	if _, err := second.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init second: %v", err)
	}
	if got, _ := second.MeetingID(); got != meetingID {
		t.Fatalf("second session joined %s, want %s", got, meetingID)
	}

	if err := first.Close(ctx, entities.CloseReasonClientClosed); err != nil {
		t.Fatalf("close first: %v", err)
	}
	if m := f.meeting(t, meetingID); m.EndTS != nil {
		t.Fatal("meeting ended while a session was still open")
	}

	if err := second.Close(ctx, entities.CloseReasonClientClosed); err != nil {
		t.Fatalf("close second: %v", err)
	}
	if m := f.meeting(t, meetingID); m.EndTS == nil {
		t.Fatal("meeting should end after the last session closes")
	}

	third, _ := f.svc.Open(ctx, OpenInput{Remote: "c", MeetingID: &meetingID})
	defer third.Close(ctx, entities.CloseReasonClientClosed)
	if _, err := third.HandleInit(ctx, []byte(validInit)); !errors.Is(err, usecaseErrors.ErrMeetingEnded) {
		t.Fatalf("resume ended meeting: %v", err)
	}
}

func TestSession_ResumeRacingLastCloseIsRejected(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, _ := f.svc.Open(ctx, OpenInput{Remote: "a"})
	if _, err := first.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init first: %v", err)
	}
	meetingID, _ := first.MeetingID()

	// The only attached session closes after the resume looked the meeting up
	f.svc.meetingRepo = &meetingsAfterFind{
		MeetingRepository: f.svc.meetingRepo,
		afterFind: func() {
			if err := first.Close(ctx, entities.CloseReasonClientClosed); err != nil {
				t.Errorf("close first: %v", err)
			}
		},
	}

	second, _ := f.svc.Open(ctx, OpenInput{Remote: "b", MeetingID: &meetingID})
	defer second.Close(ctx, entities.CloseReasonClientClosed)
	if _, err := second.HandleInit(ctx, []byte(validInit)); !errors.Is(err, usecaseErrors.ErrMeetingEnded) {
		t.Fatalf("resume = %v, want ErrMeetingEnded", err)
	}
	if _, ok := second.MeetingID(); ok {
		t.Error("session bound to an ended meeting")
	}
	if m := f.meeting(t, meetingID); m.EndTS == nil {
		t.Error("meeting should have ended with its last session")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, _ := f.svc.Open(ctx, OpenInput{Remote: "a"})
	if _, err := sess.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := sess.Close(ctx, entities.CloseReasonReadError); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sess.Close(ctx, entities.CloseReasonClientClosed); err != nil {
		t.Fatalf("second close: %v", err)
	}
	select {
	case <-sess.Done():
	default:
		t.Error("Done not closed")
	}
	if _, err := sess.HandleFrame(ctx, []byte("late")); !errors.Is(err, usecaseErrors.ErrSessionClosed) {
		t.Errorf("frame after close: %v", err)
	}

	var row entities.IngestSession
	f.db.First(&row, "id = ?", sess.ID())
	if row.CloseReason == nil || *row.CloseReason != entities.CloseReasonReadError {
		t.Errorf("close reason = %v, want first reason", row.CloseReason)
	}
}

func TestSession_TextAfterInit(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, _ := f.svc.Open(ctx, OpenInput{Remote: "a"})
	defer sess.Close(ctx, entities.CloseReasonClientClosed)
	if _, err := sess.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init: %v", err)
	}

	if got := sess.HandleText([]byte(`{"type":"ping"}`)); got != ingestproto.MsgUnknownText {
		t.Errorf("json text = %q", got)
	}
	if got := sess.HandleText([]byte(`not json`)); got != ingestproto.MsgTextNonJSON {
		t.Errorf("plain text = %q", got)
	}
}

func TestSession_InterimThenFinalUtterances(t *testing.T) {
	f := newFixture(t, Options{InterimFrames: 2})
	tr := &fakeTranscriber{segments: []Segment{
		{Speaker: "A", StartMs: 0, EndMs: 800, Text: "hello there"},
		{Speaker: "B", StartMs: 900, EndMs: 1500, Text: "  hi  "},
		{Speaker: "B", StartMs: 1600, EndMs: 1700, Text: " "},
	}}
	f.svc.WithTranscriber(tr)
	ctx := context.Background()

	// Resume a meeting that started 10s before this session.
	meeting := &entities.Meeting{StartTS: f.clock.Add(-10 * time.Second)}
	if err := repository.NewMeetingRepository(f.db).Create(ctx, meeting); err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	sess, _ := f.svc.Open(ctx, OpenInput{Remote: "a", MeetingID: &meeting.ID})
	if _, err := sess.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := sess.HandleFrame(ctx, []byte{byte(i)}); err != nil {
			t.Fatalf("frame: %v", err)
		}
	}
	sess.interimWG.Wait()

	utterances := repository.NewUtteranceRepository(f.db)
	interim := false
	rows, err := utterances.ListByMeeting(ctx, meeting.ID, &interim)
	if err != nil {
		t.Fatalf("list interim: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("interim rows = %d, want 2", len(rows))
	}
	if rows[0].StartTimeMs != 10000 || rows[0].EndTimeMs != 10800 {
		t.Errorf("interim offsets = %d..%d, want meeting-relative 10000..10800", rows[0].StartTimeMs, rows[0].EndTimeMs)
	}

	if err := sess.Close(ctx, entities.CloseReasonClientClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	all, err := utterances.ListByMeeting(ctx, meeting.ID, nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("rows after final = %d, want 2", len(all))
	}
	for _, u := range all {
		if !u.IsFinal {
			t.Errorf("utterance %q still interim", u.Text)
		}
	}
	if all[1].Text != "hi" || all[1].SpeakerLabel == nil || *all[1].SpeakerLabel != "B" {
		t.Errorf("second utterance = %+v", all[1])
	}
	if tr.calls != 2 {
		t.Errorf("transcriber calls = %d, want 2 (one interim, one final)", tr.calls)
	}
}

func TestSession_FailedFinalPassKeepsInterim(t *testing.T) {
	f := newFixture(t, Options{InterimFrames: 1})
	tr := &fakeTranscriber{segments: []Segment{{StartMs: 0, EndMs: 500, Text: "draft"}}}
	f.svc.WithTranscriber(tr)
	ctx := context.Background()

	sess, _ := f.svc.Open(ctx, OpenInput{Remote: "a"})
	if _, err := sess.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := sess.HandleFrame(ctx, []byte("x")); err != nil {
		t.Fatalf("frame: %v", err)
	}
	sess.interimWG.Wait()

	tr.mu.Lock()
	tr.err = errors.New("upstream unavailable")
	tr.mu.Unlock()

	if err := sess.Close(ctx, entities.CloseReasonClientClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	meetingID, _ := sess.MeetingID()
	rows, _ := repository.NewUtteranceRepository(f.db).ListByMeeting(ctx, meetingID, nil)
	if len(rows) != 1 || rows[0].IsFinal || rows[0].Text != "draft" {
		t.Errorf("rows = %+v, want the interim draft", rows)
	}
}

func TestSession_CloseDuringFrameLeavesOnlyFinalUtterances(t *testing.T) {
	f := newFixture(t, Options{InterimFrames: 1})
	f.svc.WithTranscriber(&fakeTranscriber{segments: []Segment{{StartMs: 0, EndMs: 500, Text: "hello"}}})
	stats := &pausingStats{StatsStore: f.svc.stats, paused: make(chan struct{}), resume: make(chan struct{})}
	f.svc.stats = stats
	ctx := context.Background()

	sess, _ := f.svc.Open(ctx, OpenInput{Remote: "a"})
	if _, err := sess.HandleInit(ctx, []byte(validInit)); err != nil {
		t.Fatalf("init: %v", err)
	}

	frameErr := make(chan error, 1)
	go func() {
		_, err := sess.HandleFrame(ctx, []byte("x"))
		frameErr <- err
	}()

	// Close while the frame that triggered an interim pass is still in flight
	<-stats.paused
	if err := sess.Close(ctx, entities.CloseReasonServerShutdown); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(stats.resume)
	if err := <-frameErr; err != nil {
		t.Fatalf("frame: %v", err)
	}
	sess.interimWG.Wait()

	meetingID, _ := sess.MeetingID()
	rows, err := repository.NewUtteranceRepository(f.db).ListByMeeting(ctx, meetingID, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || !rows[0].IsFinal || rows[0].Text != "hello" {
		t.Fatalf("rows = %+v, want one final utterance", rows)
	}
}

func TestService_ShutdownClosesLiveSessions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, _ := f.svc.Open(ctx, OpenInput{Remote: "a"})
	if err := f.svc.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session not closed by shutdown")
	}

	var row entities.IngestSession
	f.db.First(&row, "id = ?", sess.ID())
	if row.CloseReason == nil || *row.CloseReason != entities.CloseReasonServerShutdown {
		t.Errorf("close reason = %v", row.CloseReason)
	}
}

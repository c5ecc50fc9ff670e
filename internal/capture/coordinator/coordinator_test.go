package coordinator

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/johnquangdev/meetscribe/internal/capture"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

const endpoint = "ws://localhost:8080/ws/ingest"

type fakeTabs struct {
	tab *capture.Tab
	err error
}

func (f *fakeTabs) ActiveTab(ctx context.Context) (*capture.Tab, error) {
	return f.tab, f.err
}

type fakeIssuer struct {
	mu     sync.Mutex
	issued int
	handle string
	err    error
}

func (f *fakeIssuer) Issue(ctx context.Context, tabID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return f.handle, f.err
}

func (f *fakeIssuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued
}

// fakeWorker keeps one session the way the real worker does
type fakeWorker struct {
	mu       sync.Mutex
	state    capture.WorkerState
	commands []capture.WorkerCommand
	sessions int
	startErr error

	// lostStart keeps the session but answers the START as if the caller gave up
	lostStart bool
	// failStops answers that many STOPs with an error and no effect
	failStops int
}

var errLost = usecaseErrors.Capture(usecaseErrors.ErrWorkerUnavailable, context.Canceled)

func (w *fakeWorker) Dispatch(ctx context.Context, cmd capture.WorkerCommand) capture.Reply {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commands = append(w.commands, cmd)

	switch cmd.Type {
	case capture.CmdStart:
		if w.startErr != nil {
			return capture.ReplyFor(w.startErr)
		}
		if w.state == capture.WorkerCapturing {
			return capture.ReplyFor(usecaseErrors.ErrAlreadyActive)
		}
		w.state = capture.WorkerCapturing
		w.sessions++
		if w.lostStart {
			return capture.ReplyFor(errLost)
		}
	case capture.CmdStop:
		if w.failStops > 0 {
			w.failStops--
			return capture.ReplyFor(errLost)
		}
		w.state = capture.WorkerIdle
	}
	return capture.ReplyFor(nil)
}

func (w *fakeWorker) State() capture.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == "" {
		return capture.WorkerIdle
	}
	return w.state
}

func (w *fakeWorker) endSession() {
	w.mu.Lock()
	w.state = capture.WorkerIdle
	w.mu.Unlock()
}

func (w *fakeWorker) dispatched() []capture.WorkerCommand {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]capture.WorkerCommand(nil), w.commands...)
}

type fakeHost struct {
	worker  *fakeWorker
	err     error
	ensured int
}

func (h *fakeHost) Ensure(ctx context.Context) (capture.WorkerPort, error) {
	h.ensured++
	if h.err != nil {
		return nil, h.err
	}
	return h.worker, nil
}

type fixture struct {
	tabs   *fakeTabs
	issuer *fakeIssuer
	host   *fakeHost
	worker *fakeWorker
	coord  *Coordinator
}

func newFixture(opts Options) *fixture {
	if opts.TrustedOrigin == "" {
		opts.TrustedOrigin = "https://meet.google.com/"
	}
	worker := &fakeWorker{}
	f := &fixture{
		tabs:   &fakeTabs{tab: &capture.Tab{ID: "tab-1", URL: "https://meet.google.com/abc-defg-hij"}},
		issuer: &fakeIssuer{handle: "handle-1"},
		host:   &fakeHost{worker: worker},
		worker: worker,
	}
	f.coord = New(f.tabs, f.host, f.issuer, opts, nil)
	return f
}

func TestStartCapture_IneligibleTabNeverRequestsHandle(t *testing.T) {
	cases := []struct {
		name string
		tab  *capture.Tab
	}{
		{"no focused tab", nil},
		{"other site", &capture.Tab{ID: "t", URL: "https://example.com/meet.google.com/"}},
		{"plain http", &capture.Tab{ID: "t", URL: "http://meet.google.com/abc"}},
		{"empty url", &capture.Tab{ID: "t"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(Options{})
			f.tabs.tab = tc.tab

			err := f.coord.StartCapture(context.Background(), endpoint)
			if !errors.Is(err, usecaseErrors.ErrInvalidSource) {
				t.Fatalf("error = %v, want InvalidSource", err)
			}
			if got := f.issuer.count(); got != 0 {
				t.Fatalf("issued %d handles, want 0", got)
			}
			if len(f.worker.dispatched()) != 0 {
				t.Fatal("worker received a command")
			}
			if got := f.coord.Status().Coordinator; got != capture.CoordinatorIdle {
				t.Fatalf("state = %s, want idle", got)
			}
		})
	}
}

func TestStartCapture_InvalidEndpoint(t *testing.T) {
	f := newFixture(Options{})

	for _, ep := range []string{"", "ftp://host/x", "ws://"} {
		err := f.coord.StartCapture(context.Background(), ep)
		if !errors.Is(err, usecaseErrors.ErrInvalidInput) {
			t.Fatalf("endpoint %q: error = %v, want invalid input", ep, err)
		}
	}
	if f.host.ensured != 0 || f.issuer.count() != 0 {
		t.Fatal("invalid endpoint reached the worker host or handle issuer")
	}
}

func TestStartCapture_DispatchesStartWithHandle(t *testing.T) {
	f := newFixture(Options{})

	if err := f.coord.StartCapture(context.Background(), endpoint); err != nil {
		t.Fatalf("start: %v", err)
	}

	cmds := f.worker.dispatched()
	if len(cmds) != 1 {
		t.Fatalf("dispatched %d commands, want 1", len(cmds))
	}
	if cmds[0].Type != capture.CmdStart || cmds[0].Handle != "handle-1" || cmds[0].Endpoint != endpoint {
		t.Fatalf("unexpected command %+v", cmds[0])
	}

	status := f.coord.Status()
	if status.Coordinator != capture.CoordinatorActive || status.Worker != capture.WorkerCapturing {
		t.Fatalf("status = %+v", status)
	}
	if status.TabURL != "https://meet.google.com/abc-defg-hij" {
		t.Fatalf("tab url = %q", status.TabURL)
	}
}

func TestStartCapture_AnnotatesSource(t *testing.T) {
	f := newFixture(Options{AnnotateSource: true})

	if err := f.coord.StartCapture(context.Background(), endpoint+"?title=standup"); err != nil {
		t.Fatalf("start: %v", err)
	}

	u, err := url.Parse(f.worker.dispatched()[0].Endpoint)
	if err != nil {
		t.Fatalf("parse endpoint: %v", err)
	}
	if got := u.Query().Get(SourceParam); got != "https://meet.google.com/abc-defg-hij" {
		t.Fatalf("%s = %q", SourceParam, got)
	}
	if got := u.Query().Get("title"); got != "standup" {
		t.Fatalf("title = %q", got)
	}

	// An explicit value is kept
	g := newFixture(Options{AnnotateSource: true})
	if err := g.coord.StartCapture(context.Background(), endpoint+"?meet_url=custom"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := g.worker.dispatched()[0].Endpoint; got != endpoint+"?meet_url=custom" {
		t.Fatalf("endpoint = %q", got)
	}
}

func TestStartCapture_DoubleStartYieldsOneSession(t *testing.T) {
	f := newFixture(Options{})

	for i := 0; i < 2; i++ {
		if err := f.coord.StartCapture(context.Background(), endpoint); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}

	if got := f.issuer.count(); got != 1 {
		t.Fatalf("issued %d handles, want 1", got)
	}
	if f.worker.sessions != 1 {
		t.Fatalf("worker sessions = %d, want 1", f.worker.sessions)
	}
}

func TestStartCapture_RejectDuplicate(t *testing.T) {
	f := newFixture(Options{RejectDuplicate: true})

	if err := f.coord.StartCapture(context.Background(), endpoint); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := f.coord.StartCapture(context.Background(), endpoint)
	if !errors.Is(err, usecaseErrors.ErrAlreadyActive) {
		t.Fatalf("error = %v, want AlreadyActive", err)
	}
	if got := f.issuer.count(); got != 1 {
		t.Fatalf("issued %d handles, want 1", got)
	}
}

func TestStartCapture_RestartsAfterWorkerEndedSession(t *testing.T) {
	f := newFixture(Options{})

	if err := f.coord.StartCapture(context.Background(), endpoint); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.worker.endSession()

	if got := f.coord.Status().Coordinator; got != capture.CoordinatorIdle {
		t.Fatalf("state = %s, want idle after worker ended", got)
	}
	if err := f.coord.StartCapture(context.Background(), endpoint); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := f.issuer.count(); got != 2 {
		t.Fatalf("issued %d handles, want 2", got)
	}
}

func TestStartCapture_Failures(t *testing.T) {
	t.Run("worker unavailable", func(t *testing.T) {
		f := newFixture(Options{})
		f.host.err = errors.New("no context")

		err := f.coord.StartCapture(context.Background(), endpoint)
		if !errors.Is(err, usecaseErrors.ErrWorkerUnavailable) {
			t.Fatalf("error = %v, want WorkerUnavailable", err)
		}
		if f.issuer.count() != 0 {
			t.Fatal("handle issued without a worker")
		}
	})

	t.Run("handle error", func(t *testing.T) {
		f := newFixture(Options{})
		f.issuer.err = errors.New("denied")

		err := f.coord.StartCapture(context.Background(), endpoint)
		if !errors.Is(err, usecaseErrors.ErrHandleUnavailable) {
			t.Fatalf("error = %v, want HandleUnavailable", err)
		}
		if len(f.worker.dispatched()) != 0 {
			t.Fatal("worker received a command")
		}
	})

	t.Run("empty handle", func(t *testing.T) {
		f := newFixture(Options{})
		f.issuer.handle = ""

		err := f.coord.StartCapture(context.Background(), endpoint)
		if !errors.Is(err, usecaseErrors.ErrHandleUnavailable) {
			t.Fatalf("error = %v, want HandleUnavailable", err)
		}
	})

	t.Run("worker reply is returned", func(t *testing.T) {
		f := newFixture(Options{})
		f.worker.startErr = usecaseErrors.Capture(usecaseErrors.ErrSocket, errors.New("handshake timeout"))

		err := f.coord.StartCapture(context.Background(), endpoint)
		if !errors.Is(err, usecaseErrors.ErrSocket) {
			t.Fatalf("error = %v, want SocketError", err)
		}
		if got := usecaseErrors.Wire(err); got != "SocketError: ingestion socket error: handshake timeout" {
			t.Fatalf("wire = %q", got)
		}
		if got := f.coord.Status().Coordinator; got != capture.CoordinatorIdle {
			t.Fatalf("state = %s, want idle", got)
		}
	})
}

func TestStopCapture_IdleHasNoSideEffects(t *testing.T) {
	f := newFixture(Options{})

	if err := f.coord.StopCapture(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if f.host.ensured != 0 || f.issuer.count() != 0 || len(f.worker.dispatched()) != 0 {
		t.Fatal("idle stop had side effects")
	}
}

func TestStopCapture_DispatchesStop(t *testing.T) {
	f := newFixture(Options{})

	if err := f.coord.StartCapture(context.Background(), endpoint); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.coord.StopCapture(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := f.coord.StopCapture(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	cmds := f.worker.dispatched()
	if len(cmds) != 2 || cmds[1].Type != capture.CmdStop {
		t.Fatalf("commands = %+v, want START then one STOP", cmds)
	}
	status := f.coord.Status()
	if status.Coordinator != capture.CoordinatorIdle || status.Worker != capture.WorkerIdle || status.Endpoint != "" {
		t.Fatalf("status = %+v", status)
	}
}

func TestStartCapture_LostReplyIsCleanedUp(t *testing.T) {
	f := newFixture(Options{})
	f.worker.lostStart = true

	err := f.coord.StartCapture(context.Background(), endpoint)
	if !errors.Is(err, usecaseErrors.ErrWorkerUnavailable) {
		t.Fatalf("error = %v, want WorkerUnavailable", err)
	}

	cmds := f.worker.dispatched()
	if len(cmds) != 2 || cmds[1].Type != capture.CmdStop {
		t.Fatalf("commands = %+v, want START then a cleanup STOP", cmds)
	}
	status := f.coord.Status()
	if status.Coordinator != capture.CoordinatorIdle || status.Worker != capture.WorkerIdle || status.Endpoint != "" {
		t.Fatalf("status = %+v", status)
	}
}

func TestStopCapture_ReachesSessionTheCoordinatorMissed(t *testing.T) {
	f := newFixture(Options{})
	f.worker.lostStart = true
	f.worker.failStops = 1

	if err := f.coord.StartCapture(context.Background(), endpoint); err == nil {
		t.Fatal("expected the start to fail")
	}

	// The cleanup STOP failed, so the worker still holds the session
	status := f.coord.Status()
	if status.Coordinator != capture.CoordinatorActive || status.Worker != capture.WorkerCapturing {
		t.Fatalf("status = %+v, want the live session adopted", status)
	}
	if status.Endpoint != endpoint {
		t.Fatalf("endpoint = %q", status.Endpoint)
	}

	if err := f.coord.StopCapture(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := f.coord.Status(); got.Coordinator != capture.CoordinatorIdle || got.Worker != capture.WorkerIdle {
		t.Fatalf("status after stop = %+v", got)
	}

	f.worker.mu.Lock()
	f.worker.lostStart = false
	f.worker.mu.Unlock()
	if err := f.coord.StartCapture(context.Background(), endpoint); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

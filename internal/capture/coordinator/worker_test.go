package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnquangdev/meetscribe/internal/capture"
	"github.com/johnquangdev/meetscribe/internal/capture/worker"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

// Host doubles for driving a real worker

type countingStream struct {
	released *atomic.Int32
}

func (s countingStream) Read(p []byte) (int, error) { return 0, errors.New("not readable") }

func (s countingStream) Release() error {
	s.released.Add(1)
	return nil
}

type countingSource struct {
	released atomic.Int32
}

func (s *countingSource) Acquire(ctx context.Context, handle string) (capture.Stream, error) {
	return countingStream{released: &s.released}, nil
}

type idleRecording struct {
	chunks chan []byte
	once   sync.Once
}

func (r *idleRecording) Chunks() <-chan []byte { return r.chunks }
func (r *idleRecording) Stop()                 { r.once.Do(func() { close(r.chunks) }) }
func (r *idleRecording) Err() error            { return nil }

type idleEncoder struct{}

func (idleEncoder) Start(stream capture.Stream, format string, timeslice time.Duration) (capture.Recording, error) {
	return &idleRecording{chunks: make(chan []byte)}, nil
}

type quietSocket struct {
	messages chan string
	once     sync.Once
	closes   *atomic.Int32
}

func (s *quietSocket) SendText(data []byte) error   { return nil }
func (s *quietSocket) SendBinary(data []byte) error { return nil }
func (s *quietSocket) Messages() <-chan string      { return s.messages }

func (s *quietSocket) Close() error {
	s.closes.Add(1)
	s.once.Do(func() { close(s.messages) })
	return nil
}

// hookDialer runs connected after each successful dial
type hookDialer struct {
	mu        sync.Mutex
	connected func()
	closes    atomic.Int32
}

func (d *hookDialer) Dial(ctx context.Context, endpoint string) (capture.Socket, error) {
	d.mu.Lock()
	hook := d.connected
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &quietSocket{messages: make(chan string), closes: &d.closes}, nil
}

func (d *hookDialer) setConnected(hook func()) {
	d.mu.Lock()
	d.connected = hook
	d.mu.Unlock()
}

func TestStartCapture_CanceledCallerLeavesNoSessionBehind(t *testing.T) {
	source, dialer := &countingSource{}, &hookDialer{}
	host := worker.NewHost(func() (*worker.Worker, error) {
		return worker.New(source, idleEncoder{}, dialer, worker.Options{}, nil), nil
	})
	t.Cleanup(host.Close)

	tabs := &fakeTabs{tab: &capture.Tab{ID: "tab-1", URL: "https://meet.google.com/abc-defg-hij"}}
	coord := New(tabs, host, &fakeIssuer{handle: "handle-1"}, Options{TrustedOrigin: "https://meet.google.com/"}, nil)

	// The caller gives up while the handshake completes
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dialer.setConnected(cancel)

	err := coord.StartCapture(ctx, endpoint)
	if !errors.Is(err, usecaseErrors.ErrWorkerUnavailable) {
		t.Fatalf("error = %v, want WorkerUnavailable", err)
	}
	status := coord.Status()
	if status.Coordinator != capture.CoordinatorIdle || status.Worker != capture.WorkerIdle {
		t.Fatalf("status = %+v, want both idle", status)
	}
	if got := source.released.Load(); got != 1 {
		t.Fatalf("stream released %d times, want 1", got)
	}
	if got := dialer.closes.Load(); got != 1 {
		t.Fatalf("socket closed %d times, want 1", got)
	}

	dialer.setConnected(nil)
	if err := coord.StartCapture(context.Background(), endpoint); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := coord.Status().Worker; got != capture.WorkerCapturing {
		t.Fatalf("worker = %s, want capturing", got)
	}
	if err := coord.StopCapture(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := source.released.Load(); got != 2 {
		t.Fatalf("stream released %d times, want 2", got)
	}
	if got := coord.Status().Worker; got != capture.WorkerIdle {
		t.Fatalf("worker = %s, want idle", got)
	}
}

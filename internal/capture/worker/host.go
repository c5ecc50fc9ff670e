package worker

import (
	"context"
	"sync"

	"github.com/johnquangdev/meetscribe/internal/capture"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

// Host provisions the worker on first use and keeps its session goroutine
// running until Close.
type Host struct {
	factory func() (*Worker, error)

	mu     sync.Mutex
	worker *Worker
	cancel context.CancelFunc
}

var _ capture.WorkerHost = (*Host)(nil)

// NewHost creates a host that builds its worker with factory
func NewHost(factory func() (*Worker, error)) *Host {
	return &Host{factory: factory}
}

// Ensure returns the running worker, creating it if needed
func (h *Host) Ensure(ctx context.Context) (capture.WorkerPort, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.worker != nil {
		select {
		case <-h.worker.Done():
			h.worker = nil
		default:
			return h.worker, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, usecaseErrors.Capture(usecaseErrors.ErrWorkerUnavailable, err)
	}

	w, err := h.factory()
	if err != nil {
		return nil, usecaseErrors.Capture(usecaseErrors.ErrWorkerUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go w.Run(runCtx)

	h.worker = w
	h.cancel = cancel
	return w, nil
}

// Close stops the worker, releasing any live session
func (h *Host) Close() {
	h.mu.Lock()
	w, cancel := h.worker, h.cancel
	h.worker, h.cancel = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-w.Done()
	}
}

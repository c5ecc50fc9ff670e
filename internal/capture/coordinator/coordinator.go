// Package coordinator validates the capture source, provisions the worker and
// relays start and stop commands to it. It never touches audio.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/capture"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

// SourceParam is the endpoint query parameter that carries the tab URL
const SourceParam = "meet_url"

// cleanupTimeout bounds the STOP sent after a failed START. It covers a
// worker still finishing the handshake.
var cleanupTimeout = 15 * time.Second

// Options tunes coordinator policy
type Options struct {
	// TrustedOrigin is the URL prefix a tab must have to be captured
	TrustedOrigin string
	// AnnotateSource adds the tab URL to the endpoint query when absent
	AnnotateSource bool
	// RejectDuplicate answers a start while active with AlreadyActive
	// instead of treating it as a no-op
	RejectDuplicate bool
}

// Coordinator is the background coordinator. Operations are serialized.
type Coordinator struct {
	tabs    capture.TabResolver
	host    capture.WorkerHost
	handles capture.HandleIssuer
	opts    Options
	logger  *zap.Logger

	mu       sync.Mutex
	state    capture.CoordinatorState
	worker   capture.WorkerPort
	endpoint string
	tabURL   string
}

// New creates a coordinator in the idle state
func New(tabs capture.TabResolver, host capture.WorkerHost, handles capture.HandleIssuer, opts Options, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		tabs:    tabs,
		host:    host,
		handles: handles,
		opts:    opts,
		logger:  logger,
		state:   capture.CoordinatorIdle,
	}
}

// StartCapture begins capturing the focused tab and streaming it to endpoint
func (c *Coordinator) StartCapture(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcile()
	if c.state == capture.CoordinatorActive {
		if c.opts.RejectDuplicate {
			return usecaseErrors.ErrAlreadyActive
		}
		c.logger.Info("Capture already active, ignoring start", zap.String("endpoint", c.endpoint))
		return nil
	}

	if err := validateEndpoint(endpoint); err != nil {
		return err
	}

	c.state = capture.CoordinatorInitializing
	endpoint, tabURL, err := c.start(ctx, endpoint)
	if err != nil {
		c.state = capture.CoordinatorIdle
		c.reconcile()
		if c.state == capture.CoordinatorIdle {
			c.endpoint = ""
			c.tabURL = ""
		}
		c.logger.Warn("⚠️ Capture start failed", zap.Error(err))
		return err
	}

	c.state = capture.CoordinatorActive
	c.endpoint = endpoint
	c.tabURL = tabURL
	c.logger.Info("✅ Capture active",
		zap.String("endpoint", endpoint),
		zap.String("tab_url", tabURL),
	)
	return nil
}

func (c *Coordinator) start(ctx context.Context, endpoint string) (string, string, error) {
	tab, err := c.tabs.ActiveTab(ctx)
	if err != nil {
		return "", "", usecaseErrors.Capture(usecaseErrors.ErrInvalidSource, err)
	}
	if tab == nil {
		return "", "", usecaseErrors.Capture(usecaseErrors.ErrInvalidSource, fmt.Errorf("no focused tab"))
	}
	if !c.eligible(tab.URL) {
		return "", "", usecaseErrors.Capture(usecaseErrors.ErrInvalidSource, fmt.Errorf("tab %q is outside %s", tab.URL, c.opts.TrustedOrigin))
	}

	worker, err := c.host.Ensure(ctx)
	if err != nil {
		return "", "", asTagged(usecaseErrors.ErrWorkerUnavailable, err)
	}
	c.worker = worker

	handle, err := c.handles.Issue(ctx, tab.ID)
	if err != nil {
		return "", "", asTagged(usecaseErrors.ErrHandleUnavailable, err)
	}
	if handle == "" {
		return "", "", usecaseErrors.Capture(usecaseErrors.ErrHandleUnavailable, fmt.Errorf("empty handle for tab %s", tab.ID))
	}

	if c.opts.AnnotateSource {
		endpoint = annotate(endpoint, tab.URL)
	}
	// Kept if the worker ends up holding the session despite a failed reply
	c.endpoint = endpoint
	c.tabURL = tab.URL

	reply := worker.Dispatch(ctx, capture.WorkerCommand{
		Type:     capture.CmdStart,
		Endpoint: endpoint,
		Handle:   handle,
	})
	if err := reply.Err(); err != nil {
		if !errors.Is(err, usecaseErrors.ErrAlreadyActive) {
			c.cleanup(worker)
		}
		return "", "", err
	}
	return endpoint, tab.URL, nil
}

// cleanup stops whatever a failed START left behind. The caller's context may
// already be done, so STOP runs on a detached one. Callers hold c.mu.
func (c *Coordinator) cleanup(worker capture.WorkerPort) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := worker.Dispatch(ctx, capture.WorkerCommand{Type: capture.CmdStop}).Err(); err != nil {
		c.logger.Warn("⚠️ Cleanup after failed start did not complete", zap.Error(err))
	}
}

// StopCapture stops the worker session. It is a no-op when neither the
// coordinator nor the worker holds a session.
func (c *Coordinator) StopCapture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		return nil
	}
	c.reconcile()
	if c.state == capture.CoordinatorIdle {
		return nil
	}

	c.state = capture.CoordinatorStopping
	reply := c.worker.Dispatch(ctx, capture.WorkerCommand{Type: capture.CmdStop})

	c.state = capture.CoordinatorIdle
	c.endpoint = ""
	c.tabURL = ""
	if err := reply.Err(); err != nil {
		c.logger.Warn("⚠️ Capture stop failed", zap.Error(err))
		return err
	}
	c.logger.Info("🔒 Capture stopped")
	return nil
}

// Status reports coordinator and worker state
func (c *Coordinator) Status() capture.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcile()
	status := capture.Status{
		Coordinator: c.state,
		Worker:      capture.WorkerIdle,
		Endpoint:    c.endpoint,
		TabURL:      c.tabURL,
	}
	if c.worker != nil {
		status.Worker = c.worker.State()
	}
	return status
}

// reconcile aligns the coordinator with the worker. It drops back to idle when
// the worker ended the session on its own (socket close, encoder failure) and
// adopts a session the worker holds after a START whose reply was lost.
// Callers hold c.mu.
func (c *Coordinator) reconcile() {
	if c.worker == nil {
		return
	}
	ws := c.worker.State()
	switch {
	case c.state == capture.CoordinatorActive && ws == capture.WorkerIdle:
		c.logger.Info("Worker session ended, coordinator back to idle", zap.String("endpoint", c.endpoint))
		c.state = capture.CoordinatorIdle
		c.endpoint = ""
		c.tabURL = ""
	case c.state == capture.CoordinatorIdle && (ws == capture.WorkerCapturing || ws == capture.WorkerInitializing):
		c.logger.Warn("⚠️ Worker holds a session, coordinator now active", zap.String("worker_state", string(ws)))
		c.state = capture.CoordinatorActive
	}
}

func (c *Coordinator) eligible(tabURL string) bool {
	return c.opts.TrustedOrigin != "" && strings.HasPrefix(tabURL, c.opts.TrustedOrigin)
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", usecaseErrors.ErrInvalidInput)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint: %v", usecaseErrors.ErrInvalidInput, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("%w: endpoint scheme %q", usecaseErrors.ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: endpoint host is required", usecaseErrors.ErrInvalidInput)
	}
	return nil
}

// annotate sets the source query parameter unless the caller already did
func annotate(endpoint, tabURL string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Get(SourceParam) != "" {
		return endpoint
	}
	q.Set(SourceParam, tabURL)
	u.RawQuery = q.Encode()
	return u.String()
}

func asTagged(sentinel, err error) error {
	if usecaseErrors.Tag(err) != "" {
		return err
	}
	return usecaseErrors.Capture(sentinel, err)
}

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/capture"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
	"github.com/johnquangdev/meetscribe/pkg/ingestproto"
)

// Options configures what the worker declares in the init descriptor
type Options struct {
	Format    string
	Timeslice time.Duration
}

// Worker owns at most one capture session. Every session event (commands,
// encoder chunks, encoder termination, socket messages and socket close) is
// handled by the Run goroutine, never concurrently.
type Worker struct {
	source  capture.CaptureSource
	encoder capture.Encoder
	dialer  capture.Dialer
	opts    Options
	logger  *zap.Logger

	requests chan request
	done     chan struct{}

	mu    sync.RWMutex
	state capture.WorkerState
}

var _ capture.WorkerPort = (*Worker)(nil)

type request struct {
	ctx   context.Context
	cmd   capture.WorkerCommand
	reply chan capture.Reply
}

// session is only touched by the Run goroutine
type session struct {
	endpoint string
	stream   capture.Stream
	socket   capture.Socket
	rec      capture.Recording

	released bool
	sent     int64
}

// New creates a worker. Call Run to start its session goroutine.
func New(source capture.CaptureSource, encoder capture.Encoder, dialer capture.Dialer, opts Options, logger *zap.Logger) *Worker {
	if opts.Format == "" {
		opts.Format = ingestproto.DefaultFormat
	}
	if opts.Timeslice <= 0 {
		opts.Timeslice = ingestproto.DefaultTimesliceMs * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		source:   source,
		encoder:  encoder,
		dialer:   dialer,
		opts:     opts,
		logger:   logger,
		requests: make(chan request),
		done:     make(chan struct{}),
		state:    capture.WorkerIdle,
	}
}

// State returns the current session state
func (w *Worker) State() capture.WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s capture.WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Done is closed when Run returns
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Dispatch sends a command to the session goroutine and waits for its reply
func (w *Worker) Dispatch(ctx context.Context, cmd capture.WorkerCommand) capture.Reply {
	req := request{ctx: ctx, cmd: cmd, reply: make(chan capture.Reply, 1)}

	select {
	case w.requests <- req:
	case <-w.done:
		return capture.ReplyFor(usecaseErrors.Capture(usecaseErrors.ErrWorkerUnavailable, fmt.Errorf("worker stopped")))
	case <-ctx.Done():
		return capture.ReplyFor(usecaseErrors.Capture(usecaseErrors.ErrWorkerUnavailable, ctx.Err()))
	}

	select {
	case reply := <-req.reply:
		return reply
	case <-ctx.Done():
		return capture.ReplyFor(usecaseErrors.Capture(usecaseErrors.ErrWorkerUnavailable, ctx.Err()))
	}
}

// Run is the session goroutine. It returns when ctx is done, releasing any
// live session first.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	var sess *session
	for {
		var chunks <-chan []byte
		var messages <-chan string
		if sess != nil {
			if sess.rec != nil {
				chunks = sess.rec.Chunks()
			}
			if sess.socket != nil {
				messages = sess.socket.Messages()
			}
		}

		select {
		case <-ctx.Done():
			if sess != nil {
				w.release(sess, "worker shutdown")
			}
			return

		case req := <-w.requests:
			sess = w.handle(req, sess)

		case chunk, ok := <-chunks:
			if !ok {
				reason := "encoder stopped"
				if err := sess.rec.Err(); err != nil {
					reason = fmt.Sprintf("encoder failed: %v", err)
				}
				w.release(sess, reason)
				sess = nil
				continue
			}
			if !w.forward(sess, chunk) {
				w.release(sess, "send failed")
				sess = nil
			}

		case msg, ok := <-messages:
			if !ok {
				w.release(sess, "socket closed")
				sess = nil
				continue
			}
			// Server messages are advisory
			w.logger.Debug("ingest advisory", zap.String("message", msg))
		}
	}
}

func (w *Worker) handle(req request, sess *session) *session {
	switch req.cmd.Type {
	case capture.CmdStart:
		if sess != nil {
			req.reply <- capture.ReplyFor(usecaseErrors.ErrAlreadyActive)
			return sess
		}
		next, err := w.start(req.ctx, req.cmd.Endpoint, req.cmd.Handle)
		if err == nil && req.ctx.Err() != nil {
			// The caller stopped waiting and will report a failure
			w.release(next, "start abandoned")
			next, err = nil, usecaseErrors.Capture(usecaseErrors.ErrWorkerUnavailable, req.ctx.Err())
		}
		req.reply <- capture.ReplyFor(err)
		return next

	case capture.CmdStop:
		if sess != nil {
			w.release(sess, "stop requested")
		}
		req.reply <- capture.ReplyFor(nil)
		return nil

	default:
		req.reply <- capture.ReplyFor(usecaseErrors.Capture(usecaseErrors.ErrUnknownCommand, fmt.Errorf("%q", req.cmd.Type)))
		return sess
	}
}

// start acquires the stream, opens the socket, sends the init descriptor and
// starts the encoder. Any failure releases what was acquired so far.
func (w *Worker) start(ctx context.Context, endpoint, handle string) (*session, error) {
	w.setState(capture.WorkerInitializing)
	log := w.logger.With(zap.String("endpoint", endpoint))

	sess := &session{endpoint: endpoint}

	stream, err := w.source.Acquire(ctx, handle)
	if err != nil {
		w.setState(capture.WorkerIdle)
		log.Error("❌ Failed to acquire audio stream", zap.Error(err))
		return nil, usecaseErrors.Capture(usecaseErrors.ErrCaptureUnavailable, err)
	}
	sess.stream = stream

	socket, err := w.dialer.Dial(ctx, endpoint)
	if err != nil {
		w.release(sess, "dial failed")
		log.Error("❌ Failed to open ingestion socket", zap.Error(err))
		return nil, asSocketError(err)
	}
	sess.socket = socket

	init, err := ingestproto.NewInit(w.opts.Format, int(w.opts.Timeslice/time.Millisecond)).Marshal()
	if err == nil {
		err = socket.SendText(init)
	}
	if err != nil {
		w.release(sess, "init failed")
		log.Error("❌ Failed to send init descriptor", zap.Error(err))
		return nil, asSocketError(err)
	}

	rec, err := w.encoder.Start(stream, w.opts.Format, w.opts.Timeslice)
	if err != nil {
		w.release(sess, "encoder failed")
		log.Error("❌ Failed to start encoder", zap.Error(err))
		return nil, usecaseErrors.Capture(usecaseErrors.ErrCaptureUnavailable, err)
	}
	sess.rec = rec

	w.setState(capture.WorkerCapturing)
	log.Info("🎙️ Capture started",
		zap.String("format", w.opts.Format),
		zap.Duration("timeslice", w.opts.Timeslice),
	)
	return sess, nil
}

// forward sends one chunk as a binary frame, skipping empty chunks. It
// reports false when the socket failed. Once a session is released its
// encoder is no longer read, so chunks produced after a socket close are
// dropped rather than queued.
func (w *Worker) forward(sess *session, chunk []byte) bool {
	if len(chunk) == 0 {
		return true
	}
	if err := sess.socket.SendBinary(chunk); err != nil {
		w.logger.Warn("⚠️ Failed to send audio frame", zap.Error(err))
		return false
	}
	sess.sent++
	return true
}

// release stops the encoder, releases the tracks and closes the socket.
// It runs at most once per session.
func (w *Worker) release(sess *session, reason string) {
	if sess.released {
		return
	}
	sess.released = true
	w.setState(capture.WorkerDraining)

	if sess.rec != nil {
		sess.rec.Stop()
	}
	if sess.stream != nil {
		if err := sess.stream.Release(); err != nil {
			w.logger.Warn("⚠️ Failed to release audio stream", zap.Error(err))
		}
	}
	if sess.socket != nil {
		if err := sess.socket.Close(); err != nil {
			w.logger.Debug("socket close", zap.Error(err))
		}
	}

	w.setState(capture.WorkerIdle)
	w.logger.Info("🔒 Capture session released",
		zap.String("reason", reason),
		zap.String("endpoint", sess.endpoint),
		zap.Int64("frames_sent", sess.sent),
	)
}

func asSocketError(err error) error {
	if usecaseErrors.Tag(err) != "" {
		return err
	}
	return usecaseErrors.Capture(usecaseErrors.ErrSocket, err)
}

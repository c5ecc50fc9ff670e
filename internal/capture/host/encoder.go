package host

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/johnquangdev/meetscribe/internal/capture"
)

const readBufferSize = 32 * 1024

// TimesliceEncoder segments an already encoded webm stream into one chunk
// per timeslice. Intervals with no new bytes produce no chunk.
type TimesliceEncoder struct{}

var _ capture.Encoder = TimesliceEncoder{}

// Start begins segmenting stream. Only audio/webm formats are supported.
func (TimesliceEncoder) Start(stream capture.Stream, format string, timeslice time.Duration) (capture.Recording, error) {
	if !strings.HasPrefix(format, "audio/webm") {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if timeslice <= 0 {
		return nil, fmt.Errorf("timeslice must be positive")
	}

	r := &recording{
		chunks:  make(chan []byte),
		stop:    make(chan struct{}),
		readErr: make(chan error, 1),
	}
	go r.read(stream)
	go r.run(timeslice)
	return r, nil
}

type recording struct {
	chunks  chan []byte
	stop    chan struct{}
	readErr chan error
	once    sync.Once

	mu      sync.Mutex
	pending []byte
	err     error
}

func (r *recording) Chunks() <-chan []byte { return r.chunks }

func (r *recording) Stop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *recording) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *recording) read(stream io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			r.mu.Lock()
			r.pending = append(r.pending, buf[:n]...)
			r.mu.Unlock()
		}
		if err != nil {
			r.readErr <- err
			return
		}
	}
}

func (r *recording) run(timeslice time.Duration) {
	defer close(r.chunks)

	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if !r.flush() {
				return
			}
		case err := <-r.readErr:
			r.flush()
			if !errors.Is(err, io.EOF) {
				r.mu.Lock()
				r.err = err
				r.mu.Unlock()
			}
			return
		}
	}
}

// flush emits the bytes read since the last tick. It reports false once
// the recording was stopped.
func (r *recording) flush() bool {
	r.mu.Lock()
	chunk := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(chunk) == 0 {
		return true
	}
	select {
	case r.chunks <- chunk:
		return true
	case <-r.stop:
		return false
	}
}

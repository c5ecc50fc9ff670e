// Package capture defines the host capabilities and command protocols shared
// by the capture coordinator, the capture worker and the control surface.
package capture

import (
	"context"
	"io"
	"time"
)

// Tab is a browser tab that may be captured
type Tab struct {
	ID    string
	URL   string
	Title string
}

// TabResolver finds the currently focused tab. It returns a nil tab and a
// nil error when no tab is focused.
type TabResolver interface {
	ActiveTab(ctx context.Context) (*Tab, error)
}

// HandleIssuer grants a one-shot capture handle scoped to a tab
type HandleIssuer interface {
	Issue(ctx context.Context, tabID string) (string, error)
}

// Stream is an acquired audio-only media stream. Release stops every
// underlying track and must be safe to call more than once.
type Stream interface {
	io.Reader
	Release() error
}

// CaptureSource acquires the audio stream a handle grants access to
type CaptureSource interface {
	Acquire(ctx context.Context, handle string) (Stream, error)
}

// Recording is a running segmented encoder. Chunks yields one encoded chunk
// per interval in production order and is closed when the encoder stops or
// fails.
type Recording interface {
	Chunks() <-chan []byte
	Stop()
	Err() error
}

// Encoder starts a segmented encoder on a stream
type Encoder interface {
	Start(stream Stream, format string, timeslice time.Duration) (Recording, error)
}

// Socket is an open ingestion connection. Messages yields server text
// messages and is closed once the connection is gone.
type Socket interface {
	SendText(data []byte) error
	SendBinary(data []byte) error
	Messages() <-chan string
	Close() error
}

// Dialer opens an ingestion socket. Implementations bound the handshake.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Socket, error)
}

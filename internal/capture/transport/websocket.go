// Package transport opens the capture worker's ingestion websocket.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/capture"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

const (
	writeWait        = 10 * time.Second
	maxMessageSize   = 64 * 1024
	defaultHandshake = 10 * time.Second
)

// Dialer opens ingestion sockets with a bounded handshake
type Dialer struct {
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

var _ capture.Dialer = (*Dialer)(nil)

// NewDialer creates a dialer. A non-positive timeout uses the 10s default.
func NewDialer(handshakeTimeout time.Duration, logger *zap.Logger) *Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshake
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{HandshakeTimeout: handshakeTimeout, Logger: logger}
}

// Dial connects to endpoint. Failures are SocketError.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (capture.Socket, error) {
	wsURL, err := buildWSURL(endpoint)
	if err != nil {
		return nil, usecaseErrors.Capture(usecaseErrors.ErrSocket, err)
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshake
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return nil, usecaseErrors.Capture(usecaseErrors.ErrSocket, fmt.Errorf("failed to connect to %s: %w", wsURL, err))
	}
	conn.SetReadLimit(maxMessageSize)

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Socket{
		conn:     conn,
		messages: make(chan string, 16),
		closed:   make(chan struct{}),
		logger:   logger.With(zap.String("endpoint", wsURL)),
	}
	go s.readPump()
	return s, nil
}

// buildWSURL accepts ws(s) endpoints and maps http(s) ones to ws(s)
func buildWSURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint host is required")
	}
	return u.String(), nil
}

// Socket is an open ingestion websocket
type Socket struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	messages  chan string
	closed    chan struct{}
	closeOnce sync.Once
}

var _ capture.Socket = (*Socket)(nil)

// SendText writes one text frame
func (s *Socket) SendText(data []byte) error {
	return s.write(websocket.TextMessage, data)
}

// SendBinary writes one binary frame
func (s *Socket) SendBinary(data []byte) error {
	return s.write(websocket.BinaryMessage, data)
}

func (s *Socket) write(messageType int, data []byte) error {
	select {
	case <-s.closed:
		return usecaseErrors.Capture(usecaseErrors.ErrSocket, fmt.Errorf("socket closed"))
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return usecaseErrors.Capture(usecaseErrors.ErrSocket, err)
	}
	return nil
}

// Messages yields server text messages and is closed when the connection ends
func (s *Socket) Messages() <-chan string {
	return s.messages
}

// Close sends a normal closure and closes the connection. Safe to call more
// than once.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)

		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture stopped")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}

func (s *Socket) readPump() {
	defer close(s.messages)

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				select {
				case <-s.closed:
				default:
					s.logger.Warn("⚠️ Ingestion socket read error", zap.Error(err))
				}
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		select {
		case s.messages <- string(message):
		case <-s.closed:
			return
		}
	}
}

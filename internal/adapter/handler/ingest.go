package handler

import (
	"context"
	stdErrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/errors"
	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
	"github.com/johnquangdev/meetscribe/internal/usecase/ingest"
	"github.com/johnquangdev/meetscribe/pkg/config"
	"github.com/johnquangdev/meetscribe/pkg/ingestproto"
)

const writeWait = 10 * time.Second

// Ingest handles the audio ingestion websocket
type Ingest struct {
	svc      ingest.Service
	cfg      config.IngestConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewIngestHandler creates a new ingest handler. allowedOrigins empty accepts any origin.
func NewIngestHandler(svc ingest.Service, cfg config.IngestConfig, allowedOrigins []string, logger *zap.Logger) *Ingest {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingest{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows requests without an Origin header (non-browser
// capture agents) and browser requests from the configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Stream handles GET /ws/ingest
// @Summary      Audio ingestion socket
// @Description  Upgrades to a WebSocket. The first message must be the JSON init descriptor; every later binary message is one encoded audio segment.
// @Tags         Ingest
// @Param        meeting_id  query  string  false  "Resume an open meeting"
// @Param        title       query  string  false  "Title for a new meeting"
// @Param        meet_url    query  string  false  "Source page of the captured audio"
// @Success      101
// @Failure      400  {object}  map[string]interface{}  "Invalid query or upgrade request"
// @Router       /ws/ingest [get]
func (h *Ingest) Stream(c echo.Context) error {
	input := ingest.OpenInput{
		Remote:  c.Request().RemoteAddr,
		Title:   c.QueryParam("title"),
		MeetURL: c.QueryParam("meet_url"),
	}
	if raw := c.QueryParam("meeting_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return HandleError(h.logger, c, errors.ErrInvalidArgument("invalid meeting id").WithDetail("meeting_id", raw))
		}
		input.MeetingID = &id
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Warn("⚠️ WebSocket upgrade failed",
			zap.String("remote", input.Remote),
			zap.Error(err),
		)
		return nil
	}
	defer conn.Close()

	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}

	ctx := c.Request().Context()
	sess, err := h.svc.Open(ctx, input)
	if err != nil {
		h.logger.Error("❌ Failed to open ingest session", zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "session unavailable")
		return nil
	}

	log := h.logger.With(zap.String("session_id", sess.ID().String()))
	reason := h.serve(ctx, conn, sess, log)

	if err := sess.Close(context.Background(), reason); err != nil {
		log.Warn("⚠️ Ingest session closed with errors", zap.Error(err))
	}
	log.Info("🔌 Ingest connection closed", zap.String("reason", reason))
	return nil
}

// serve runs the read loop and returns the close reason
func (h *Ingest) serve(ctx context.Context, conn *websocket.Conn, sess *ingest.Session, log *zap.Logger) string {
	if err := writeText(conn, ingestproto.MsgConnected); err != nil {
		return entities.CloseReasonReadError
	}

	if reason, ok := h.awaitInit(ctx, conn, sess, log); !ok {
		return reason
	}

	// Service shutdown closes the session from another goroutine
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-sess.Done():
			closeWith(conn, websocket.CloseGoingAway, "server shutdown")
			conn.Close()
		case <-stop:
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return readCloseReason(err, sess)
		}

		switch mt {
		case websocket.BinaryMessage:
			msg, err := sess.HandleFrame(ctx, data)
			if err != nil {
				if stdErrors.Is(err, usecaseErrors.ErrSessionClosed) {
					return entities.CloseReasonServerShutdown
				}
				log.Error("❌ Failed to handle frame", zap.Error(err))
				return entities.CloseReasonReadError
			}
			if msg != "" {
				if err := writeText(conn, msg); err != nil {
					return entities.CloseReasonReadError
				}
			}
		case websocket.TextMessage:
			if err := writeText(conn, sess.HandleText(data)); err != nil {
				return entities.CloseReasonReadError
			}
		}
	}
}

// awaitInit reads the first message within the init timeout
func (h *Ingest) awaitInit(ctx context.Context, conn *websocket.Conn, sess *ingest.Session, log *zap.Logger) (string, bool) {
	if h.cfg.InitTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(h.cfg.InitTimeout))
	}

	mt, data, err := conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if stdErrors.As(err, &netErr) && netErr.Timeout() {
			log.Warn("⚠️ No init descriptor before timeout")
			rejectInit(conn, "init timeout")
			return entities.CloseReasonInitTimeout, false
		}
		return readCloseReason(err, sess), false
	}

	if mt != websocket.TextMessage {
		log.Warn("⚠️ First message was binary")
		rejectInit(conn, "init required")
		return entities.CloseReasonInitRequired, false
	}

	desc, err := sess.HandleInit(ctx, data)
	if err != nil {
		switch {
		case stdErrors.Is(err, usecaseErrors.ErrInitRequired), stdErrors.Is(err, usecaseErrors.ErrInitInvalid):
			log.Warn("⚠️ Invalid init descriptor", zap.Error(err))
			rejectInit(conn, "init required")
		case stdErrors.Is(err, usecaseErrors.ErrMeetingNotFound), stdErrors.Is(err, usecaseErrors.ErrMeetingEnded):
			log.Warn("⚠️ Meeting cannot accept audio", zap.Error(err))
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
		default:
			log.Error("❌ Failed to accept init descriptor", zap.Error(err))
			closeWith(conn, websocket.CloseInternalServerErr, "init failed")
		}
		return entities.CloseReasonInitRequired, false
	}

	conn.SetReadDeadline(time.Time{})
	if err := writeText(conn, ingestproto.MsgInitOK); err != nil {
		return entities.CloseReasonReadError, false
	}

	log.Debug("init accepted", zap.String("format", desc.Format))
	return "", true
}

// Stats handles GET /ws/ingest/stats
// @Summary      Ingest connection stats
// @Description  Returns counters for live and recent ingestion connections keyed by connection id
// @Tags         Ingest
// @Produce      json
// @Success      200  {object}  map[string]ingestproto.Stats  "Stats by connection id"
// @Failure      500  {object}  map[string]interface{}  "Stats store unavailable"
// @Router       /ws/ingest/stats [get]
func (h *Ingest) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return HandleError(h.logger, c, errors.ErrCacheFailed("list ingest stats", err))
	}
	return c.JSON(http.StatusOK, stats)
}

func readCloseReason(err error, sess *ingest.Session) string {
	select {
	case <-sess.Done():
		return entities.CloseReasonServerShutdown
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return entities.CloseReasonClientClosed
	}
	return entities.CloseReasonReadError
}

func rejectInit(conn *websocket.Conn, text string) {
	writeText(conn, ingestproto.MsgInitRequired)
	closeWith(conn, websocket.ClosePolicyViolation, text)
}

func writeText(conn *websocket.Conn, msg string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

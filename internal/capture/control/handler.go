// Package control exposes the capture coordinator over the agent's loopback
// HTTP listener and provides the client the CLI uses to reach it.
package control

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/errors"
	"github.com/johnquangdev/meetscribe/internal/capture"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

// Controller is the coordinator as seen by the control surface
type Controller interface {
	StartCapture(ctx context.Context, endpoint string) error
	StopCapture(ctx context.Context) error
	Status() capture.Status
}

// Handler serves the control command protocol
type Handler struct {
	ctrl   Controller
	logger *zap.Logger
}

// NewHandler creates a control handler
func NewHandler(ctrl Controller, logger *zap.Logger) *Handler {
	return &Handler{ctrl: ctrl, logger: logger}
}

// Register mounts the control routes on e
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("", rejectBrowserOrigins)
	g.POST("/control", h.Control)
	g.GET("/status", h.Status)
}

// Control runs one START or STOP command
func (h *Handler) Control(c echo.Context) error {
	var req capture.ControlRequest
	if err := c.Bind(&req); err != nil {
		return h.reply(c, "", fmt.Errorf("%w: %v", usecaseErrors.ErrInvalidInput, err))
	}
	if err := c.Validate(&req); err != nil {
		return h.reply(c, "", fmt.Errorf("%w: %v", usecaseErrors.ErrInvalidInput, err))
	}

	ctx := c.Request().Context()
	var err error
	switch req.Cmd {
	case capture.CmdStart:
		err = h.ctrl.StartCapture(ctx, req.Endpoint)
	case capture.CmdStop:
		err = h.ctrl.StopCapture(ctx)
	default:
		err = usecaseErrors.Capture(usecaseErrors.ErrUnknownCommand, fmt.Errorf("%q", req.Cmd))
	}
	return h.reply(c, req.Cmd, err)
}

// Status reports coordinator and worker state
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ctrl.Status())
}

func (h *Handler) reply(c echo.Context, cmd string, err error) error {
	if err == nil {
		h.logger.Info("✅ Control command handled", zap.String("cmd", cmd))
		return c.JSON(http.StatusOK, capture.ReplyFor(nil))
	}

	appErr := toAppError(err, cmd)
	h.logger.Warn("⚠️ Control command failed",
		zap.String("cmd", cmd),
		zap.Int("status", appErr.HTTPCode),
		zap.Stringer("app_code", appErr.Code),
		zap.Error(err),
	)
	return c.JSON(appErr.HTTPCode, capture.ReplyFor(err))
}

// toAppError picks the HTTP status for a capture failure
func toAppError(err error, cmd string) errors.AppError {
	switch {
	case stdErrors.Is(err, usecaseErrors.ErrInvalidSource):
		return errors.ErrCaptureInvalidSource(err)
	case stdErrors.Is(err, usecaseErrors.ErrWorkerUnavailable):
		return errors.ErrCaptureWorkerUnavailable(err)
	case stdErrors.Is(err, usecaseErrors.ErrHandleUnavailable):
		return errors.ErrCaptureHandleUnavailable(err)
	case stdErrors.Is(err, usecaseErrors.ErrCaptureUnavailable):
		return errors.ErrCaptureMediaUnavailable(err)
	case stdErrors.Is(err, usecaseErrors.ErrSocket):
		return errors.ErrCaptureSocket(err)
	case stdErrors.Is(err, usecaseErrors.ErrAlreadyActive):
		return errors.ErrCaptureAlreadyActive()
	case stdErrors.Is(err, usecaseErrors.ErrUnknownCommand):
		return errors.ErrCaptureUnknownCommand(cmd)
	case stdErrors.Is(err, usecaseErrors.ErrInvalidInput):
		return errors.ErrInvalidArgument(err.Error())
	default:
		return errors.ErrInternal(err)
	}
}

// rejectBrowserOrigins keeps web pages from driving the loopback listener
func rejectBrowserOrigins(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(echo.HeaderOrigin) != "" {
			return c.JSON(http.StatusForbidden, capture.Reply{OK: false, Error: "cross-origin requests are not accepted"})
		}
		return next(c)
	}
}

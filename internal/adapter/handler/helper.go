package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/errors"
	"github.com/johnquangdev/meetscribe/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	"github.com/johnquangdev/meetscribe/internal/domain/repositories"
	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

// Response shapes
type success struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errs struct {
	Code    interface{}       `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Info    string            `json:"info,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// getRequestID tries to read X-Request-ID from the request
func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().Header.Get("X-Request-ID")
}

// HandleSuccess writes a standardized success response using provided logger
func HandleSuccess(logger *zap.Logger, c echo.Context, data interface{}) error {
	resp := success{
		Code:    int(errors.ErrorCode_HTTP_OK),
		Message: "success",
		Data:    data,
	}

	if logger != nil {
		logger.Info("http.response.success",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
		)
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleError centralizes error handling and logging using provided logger
func HandleError(logger *zap.Logger, c echo.Context, err error) error {
	reqID := getRequestID(c)

	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		if logger != nil {
			logger.Error("http.response.error",
				zap.String("request_id", reqID),
				zap.String("path", c.Path()),
				zap.Stringer("app_code", appErr.Code),
				zap.Error(err),
			)
		}

		info := ""
		if appErr.Raw != nil {
			info = appErr.Raw.Error()
		}

		body := errs{
			Code:    appErr.Code,
			Message: appErr.Message,
			Info:    info,
			Details: appErr.Details,
		}

		return c.JSON(appErr.HTTPCode, body)
	}

	if logger != nil {
		logger.Error("http.response.error",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	body := errs{
		Code:    errors.ErrorCode_INTERNAL,
		Message: "Internal server error",
		Info:    err.Error(),
	}

	return c.JSON(http.StatusInternalServerError, body)
}

// toAppError maps use-case errors onto HTTP errors
func toAppError(err error, meetingID string) error {
	switch {
	case stdErrors.Is(err, usecaseErrors.ErrMeetingNotFound):
		return errors.ErrMeetingNotFound(meetingID)
	case stdErrors.Is(err, usecaseErrors.ErrMeetingEnded):
		return errors.ErrMeetingEnded(meetingID)
	case stdErrors.Is(err, usecaseErrors.ErrInvalidInput):
		return errors.ErrInvalidArgument(err.Error())
	default:
		return errors.ErrInternal(err)
	}
}

// parseMeetingID reads the :id path parameter
func parseMeetingID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.ErrInvalidArgument("invalid meeting id").WithDetail("meeting_id", raw)
	}
	return id, nil
}

// buildFilters converts ListMeetingsRequest to repository filters
func buildFilters(req *meeting.ListMeetingsRequest) repositories.MeetingFilters {
	filters := repositories.MeetingFilters{
		Search: req.Search,
		Limit:  req.PageSize,
		Offset: (req.Page - 1) * req.PageSize,
	}

	if req.Status != "" {
		status := entities.MeetingStatus(req.Status)
		filters.Status = &status
	}

	return filters
}

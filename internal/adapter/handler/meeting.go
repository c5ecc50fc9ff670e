package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/errors"
	"github.com/johnquangdev/meetscribe/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meetscribe/internal/adapter/presenter"
	meetingUsecase "github.com/johnquangdev/meetscribe/internal/usecase/meeting"
)

// Meeting handles meeting-related HTTP requests
type Meeting struct {
	meetingService meetingUsecase.Service
	logger         *zap.Logger
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(meetingService meetingUsecase.Service, logger *zap.Logger) *Meeting {
	return &Meeting{
		meetingService: meetingService,
		logger:         logger,
	}
}

// ListMeetings handles GET /meetings
// @Summary      List meetings
// @Description  Gets a paginated list of meetings, newest first
// @Tags         Meetings
// @Produce      json
// @Param        page       query     int     false  "Page number (default: 1)"
// @Param        page_size  query     int     false  "Items per page (default: 20)"
// @Param        status     query     string  false  "Status filter (open/ended)"
// @Param        search     query     string  false  "Search by title"
// @Success      200        {object}  meeting.MeetingListResponse  "List of meetings"
// @Failure      400        {object}  map[string]interface{}  "Invalid request"
// @Failure      500        {object}  map[string]interface{}  "Failed to list meetings"
// @Router       /meetings [get]
func (h *Meeting) ListMeetings(c echo.Context) error {
	req := meeting.ListMeetingsRequest{Page: 1, PageSize: 20}
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	// Bind leaves explicit zeros in place
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	meetings, total, err := h.meetingService.ListMeetings(c.Request().Context(), buildFilters(&req))
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, ""))
	}

	return HandleSuccess(h.logger, c, presenter.ToMeetingListResponse(meetings, total, req.Page, req.PageSize))
}

// GetMeeting handles GET /meetings/:id
// @Summary      Get meeting
// @Description  Gets a meeting by ID
// @Tags         Meetings
// @Produce      json
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  meeting.MeetingResponse  "Meeting"
// @Failure      400  {object}  map[string]interface{}  "Invalid meeting ID"
// @Failure      404  {object}  map[string]interface{}  "Meeting not found"
// @Router       /meetings/{id} [get]
func (h *Meeting) GetMeeting(c echo.Context) error {
	meetingID, err := parseMeetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	m, err := h.meetingService.GetMeeting(c.Request().Context(), meetingID)
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, meetingID.String()))
	}

	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(m))
}

// ListUtterances handles GET /meetings/:id/utterances
// @Summary      Get meeting transcript
// @Description  Lists utterances of a meeting ordered by start time
// @Tags         Meetings
// @Produce      json
// @Param        id     path      string  true   "Meeting ID (UUID)"
// @Param        final  query     bool    false  "Only final (true) or only interim (false) utterances"
// @Success      200    {object}  meeting.TranscriptResponse  "Transcript"
// @Failure      400    {object}  map[string]interface{}  "Invalid request"
// @Failure      404    {object}  map[string]interface{}  "Meeting not found"
// @Router       /meetings/{id}/utterances [get]
func (h *Meeting) ListUtterances(c echo.Context) error {
	meetingID, err := parseMeetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req meeting.ListUtterancesRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	var final *bool
	if req.Final != "" {
		v, _ := strconv.ParseBool(req.Final)
		final = &v
	}

	utterances, err := h.meetingService.ListUtterances(c.Request().Context(), meetingID, final)
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, meetingID.String()))
	}

	return HandleSuccess(h.logger, c, presenter.ToTranscriptResponse(meetingID.String(), utterances))
}

// ListSessions handles GET /meetings/:id/sessions
// @Summary      List ingest sessions
// @Description  Lists the ingestion connections of a meeting with archived audio links
// @Tags         Meetings
// @Produce      json
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {array}   meeting.IngestSessionResponse  "Sessions"
// @Failure      400  {object}  map[string]interface{}  "Invalid meeting ID"
// @Failure      404  {object}  map[string]interface{}  "Meeting not found"
// @Router       /meetings/{id}/sessions [get]
func (h *Meeting) ListSessions(c echo.Context) error {
	meetingID, err := parseMeetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	views, err := h.meetingService.ListSessions(c.Request().Context(), meetingID)
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, meetingID.String()))
	}

	return HandleSuccess(h.logger, c, presenter.ToIngestSessionResponses(views))
}

// DeleteMeeting handles DELETE /meetings/:id
// @Summary      Delete meeting
// @Description  Deletes a meeting together with its utterances, sessions and archived audio
// @Tags         Meetings
// @Produce      json
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  map[string]interface{}  "Meeting deleted"
// @Failure      400  {object}  map[string]interface{}  "Invalid meeting ID"
// @Failure      404  {object}  map[string]interface{}  "Meeting not found"
// @Router       /meetings/{id} [delete]
func (h *Meeting) DeleteMeeting(c echo.Context) error {
	meetingID, err := parseMeetingID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	if err := h.meetingService.DeleteMeeting(c.Request().Context(), meetingID); err != nil {
		return HandleError(h.logger, c, toAppError(err, meetingID.String()))
	}

	return HandleSuccess(h.logger, c, map[string]interface{}{"deleted": meetingID.String()})
}

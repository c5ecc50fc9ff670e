package handler

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Router holds all handlers
type Router struct {
	healthHandler  *Health
	ingestHandler  *Ingest
	meetingHandler *Meeting
	swagger        bool
}

// NewRouter creates a new router with all handlers
func NewRouter(healthHandler *Health, ingestHandler *Ingest, meetingHandler *Meeting, swagger bool) *Router {
	return &Router{
		healthHandler:  healthHandler,
		ingestHandler:  ingestHandler,
		meetingHandler: meetingHandler,
		swagger:        swagger,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoints
	e.GET("/health", rt.healthHandler.Live)
	e.GET("/health/ready", rt.healthHandler.Ready)

	// Ingestion socket and its counters
	e.GET("/ws/ingest", rt.ingestHandler.Stream)
	e.GET("/ws/ingest/stats", rt.ingestHandler.Stats)

	if rt.swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// API v1 group
	v1 := e.Group("/v1")
	rt.setupMeetingRoutes(v1)
}

// setupMeetingRoutes configures meeting and transcript routes
func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetingGroup := g.Group("/meetings")

	meetingGroup.GET("", rt.meetingHandler.ListMeetings)
	meetingGroup.GET("/:id", rt.meetingHandler.GetMeeting)
	meetingGroup.GET("/:id/utterances", rt.meetingHandler.ListUtterances)
	meetingGroup.GET("/:id/sessions", rt.meetingHandler.ListSessions)
	meetingGroup.DELETE("/:id", rt.meetingHandler.DeleteMeeting)
}

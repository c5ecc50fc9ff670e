package entities

import "errors"

// Domain errors
var (
	// Meeting errors
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMeetingEnded    = errors.New("meeting has ended")

	// Utterance errors
	ErrInvalidTimeline = errors.New("utterance start must not be after end")
	ErrFinalityRevert  = errors.New("final utterance cannot become interim")

	// Ingest session errors
	ErrIngestSessionNotFound = errors.New("ingest session not found")
)

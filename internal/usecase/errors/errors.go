package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/johnquangdev/meetscribe/internal/domain/entities"
)

// Common errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("resource conflict")
	ErrInternalError = errors.New("internal server error")
)

// Meeting errors
var (
	ErrMeetingNotFound = entities.ErrMeetingNotFound
	ErrMeetingEnded    = entities.ErrMeetingEnded
	ErrInvalidTimeline = entities.ErrInvalidTimeline
	ErrFinalityRevert  = entities.ErrFinalityRevert
)

// Ingestion errors
var (
	ErrInitRequired   = errors.New("init descriptor required as first message")
	ErrInitInvalid    = errors.New("invalid init descriptor")
	ErrSessionClosed  = errors.New("ingest session closed")
	ErrNotInitialized = errors.New("ingest session not initialized")
)

// Capture errors. The tag returned by Tag is the wire name used in
// control and worker replies.
var (
	ErrInvalidSource      = errors.New("active tab is not eligible for capture")
	ErrWorkerUnavailable  = errors.New("capture worker context unavailable")
	ErrHandleUnavailable  = errors.New("capture handle unavailable")
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
	ErrSocket             = errors.New("ingestion socket error")
	ErrAlreadyActive      = errors.New("capture session already active")
	ErrUnknownCommand     = errors.New("unknown command")
)

var captureTags = []struct {
	err error
	tag string
}{
	{ErrInvalidSource, "InvalidSource"},
	{ErrWorkerUnavailable, "WorkerUnavailable"},
	{ErrHandleUnavailable, "HandleUnavailable"},
	{ErrCaptureUnavailable, "CaptureUnavailable"},
	{ErrSocket, "SocketError"},
	{ErrAlreadyActive, "AlreadyActive"},
	{ErrUnknownCommand, "UnknownCommand"},
}

// Tag returns the taxonomy name of a capture error, or "" if err is not one.
func Tag(err error) string {
	for _, t := range captureTags {
		if errors.Is(err, t.err) {
			return t.tag
		}
	}
	return ""
}

// FromTag maps a wire tag back to its sentinel. Unknown tags yield nil.
func FromTag(tag string) error {
	for _, t := range captureTags {
		if t.tag == tag {
			return t.err
		}
	}
	return nil
}

// Capture wraps cause under a capture sentinel, keeping both reachable via errors.Is.
func Capture(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// Wire renders err for a control or worker reply as "<Tag>: <message>".
// Errors outside the capture taxonomy are rendered as-is.
func Wire(err error) string {
	if err == nil {
		return ""
	}
	if tag := Tag(err); tag != "" {
		return tag + ": " + err.Error()
	}
	return err.Error()
}

type wireError struct {
	sentinel error
	msg      string
}

func (e *wireError) Error() string { return e.msg }

func (e *wireError) Unwrap() error { return e.sentinel }

// ParseWire turns a reply error string back into an error. Tagged strings
// match their sentinel with errors.Is, and Wire(ParseWire(s)) == s.
func ParseWire(s string) error {
	if s == "" {
		return nil
	}
	tag, msg, ok := strings.Cut(s, ": ")
	if ok {
		if sentinel := FromTag(tag); sentinel != nil {
			return &wireError{sentinel: sentinel, msg: msg}
		}
	}
	if sentinel := FromTag(s); sentinel != nil {
		return &wireError{sentinel: sentinel, msg: sentinel.Error()}
	}
	return errors.New(s)
}

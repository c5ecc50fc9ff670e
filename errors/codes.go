package errors

import "fmt"

// ErrorCode is the machine readable code carried by AppError
type ErrorCode int32

const (
	ErrorCode_HTTP_OK ErrorCode = 200

	// General
	ErrorCode_INTERNAL          ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT  ErrorCode = 1001
	ErrorCode_NOT_FOUND         ErrorCode = 1002
	ErrorCode_ALREADY_EXISTS    ErrorCode = 1003
	ErrorCode_PERMISSION_DENIED ErrorCode = 1004
	ErrorCode_INVALID_PAYLOAD   ErrorCode = 1005

	// Meetings
	ErrorCode_MEETING_NOT_FOUND ErrorCode = 2000
	ErrorCode_MEETING_ENDED     ErrorCode = 2001

	// Ingestion
	ErrorCode_INGEST_INIT_REQUIRED ErrorCode = 3000
	ErrorCode_INGEST_INIT_INVALID  ErrorCode = 3001
	ErrorCode_INGEST_UPGRADE       ErrorCode = 3002

	// Capture
	ErrorCode_CAPTURE_INVALID_SOURCE     ErrorCode = 4000
	ErrorCode_CAPTURE_WORKER_UNAVAILABLE ErrorCode = 4001
	ErrorCode_CAPTURE_HANDLE_UNAVAILABLE ErrorCode = 4002
	ErrorCode_CAPTURE_MEDIA_UNAVAILABLE  ErrorCode = 4003
	ErrorCode_CAPTURE_SOCKET_ERROR       ErrorCode = 4004
	ErrorCode_CAPTURE_ALREADY_ACTIVE     ErrorCode = 4005
	ErrorCode_CAPTURE_UNKNOWN_COMMAND    ErrorCode = 4006

	// Integrations
	ErrorCode_INTEGRATION_STORAGE_FAILED ErrorCode = 5000
	ErrorCode_INTEGRATION_CACHE_FAILED   ErrorCode = 5001
	ErrorCode_AI_TRANSCRIPTION_FAILED    ErrorCode = 5002

	// Database
	ErrorCode_DB_CONNECTION_FAILED    ErrorCode = 6000
	ErrorCode_DB_QUERY_FAILED         ErrorCode = 6001
	ErrorCode_DB_CONSTRAINT_VIOLATION ErrorCode = 6002
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:                    "OK",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:             "ALREADY_EXISTS",
	ErrorCode_PERMISSION_DENIED:          "PERMISSION_DENIED",
	ErrorCode_INVALID_PAYLOAD:            "INVALID_PAYLOAD",
	ErrorCode_MEETING_NOT_FOUND:          "MEETING_NOT_FOUND",
	ErrorCode_MEETING_ENDED:              "MEETING_ENDED",
	ErrorCode_INGEST_INIT_REQUIRED:       "INGEST_INIT_REQUIRED",
	ErrorCode_INGEST_INIT_INVALID:        "INGEST_INIT_INVALID",
	ErrorCode_INGEST_UPGRADE:             "INGEST_UPGRADE",
	ErrorCode_CAPTURE_INVALID_SOURCE:     "CAPTURE_INVALID_SOURCE",
	ErrorCode_CAPTURE_WORKER_UNAVAILABLE: "CAPTURE_WORKER_UNAVAILABLE",
	ErrorCode_CAPTURE_HANDLE_UNAVAILABLE: "CAPTURE_HANDLE_UNAVAILABLE",
	ErrorCode_CAPTURE_MEDIA_UNAVAILABLE:  "CAPTURE_MEDIA_UNAVAILABLE",
	ErrorCode_CAPTURE_SOCKET_ERROR:       "CAPTURE_SOCKET_ERROR",
	ErrorCode_CAPTURE_ALREADY_ACTIVE:     "CAPTURE_ALREADY_ACTIVE",
	ErrorCode_CAPTURE_UNKNOWN_COMMAND:    "CAPTURE_UNKNOWN_COMMAND",
	ErrorCode_INTEGRATION_STORAGE_FAILED: "INTEGRATION_STORAGE_FAILED",
	ErrorCode_INTEGRATION_CACHE_FAILED:   "INTEGRATION_CACHE_FAILED",
	ErrorCode_AI_TRANSCRIPTION_FAILED:    "AI_TRANSCRIPTION_FAILED",
	ErrorCode_DB_CONNECTION_FAILED:       "DB_CONNECTION_FAILED",
	ErrorCode_DB_QUERY_FAILED:            "DB_QUERY_FAILED",
	ErrorCode_DB_CONSTRAINT_VIOLATION:    "DB_CONSTRAINT_VIOLATION",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_CODE_%d", int32(c))
}

package meeting

import (
	"time"

	"github.com/johnquangdev/meetscribe/internal/adapter/dto/common"
)

// MeetingResponse represents a meeting in API responses
type MeetingResponse struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	MeetURL *string    `json:"meet_url,omitempty"`
	Status  string     `json:"status"`
	StartTS time.Time  `json:"start_ts"`
	EndTS   *time.Time `json:"end_ts,omitempty"`
}

// MeetingListResponse represents a paginated list of meetings
type MeetingListResponse struct {
	Meetings   []*MeetingResponse         `json:"meetings"`
	Pagination *common.PaginationResponse `json:"pagination"`
}

// UtteranceResponse represents one transcript line
type UtteranceResponse struct {
	ID           string  `json:"id"`
	SpeakerLabel *string `json:"speaker_label,omitempty"`
	StartTimeMs  int64   `json:"start_time_ms"`
	EndTimeMs    int64   `json:"end_time_ms"`
	Text         string  `json:"text"`
	Lang         *string `json:"lang,omitempty"`
	IsFinal      bool    `json:"is_final"`
}

// TranscriptResponse represents a meeting's utterances
type TranscriptResponse struct {
	MeetingID  string               `json:"meeting_id"`
	Utterances []*UtteranceResponse `json:"utterances"`
}

// IngestSessionResponse represents one ingestion connection of a meeting
type IngestSessionResponse struct {
	ID             string         `json:"id"`
	Remote         string         `json:"remote"`
	Init           map[string]any `json:"init,omitempty"`
	TotalBytes     int64          `json:"total_bytes"`
	FramesReceived int64          `json:"frames_received"`
	StartedAt      time.Time      `json:"started_at"`
	LastMessageAt  *time.Time     `json:"last_message_at,omitempty"`
	ClosedAt       *time.Time     `json:"closed_at,omitempty"`
	CloseReason    *string        `json:"close_reason,omitempty"`
	AudioURL       string         `json:"audio_url,omitempty"`
}

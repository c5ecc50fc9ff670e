// Package ingestproto defines the messages exchanged over the ingestion
// websocket. The first client frame is a JSON init descriptor; every later
// client frame is a binary media segment. Server text frames are advisory.
package ingestproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/johnquangdev/meetscribe/pkg/validator"
)

const (
	// DefaultFormat is the container/codec produced by the capture worker
	DefaultFormat = "audio/webm;codecs=opus"
	// DefaultTimesliceMs is the encoder interval used by the capture worker
	DefaultTimesliceMs = 500
	// InitType is the type discriminator of the init descriptor
	InitType = "init"
)

// Advisory server messages
const (
	MsgConnected    = "ingest:connected"
	MsgInitOK       = "ingest:init:ok"
	MsgUnknownText  = "ingest:unknown_text"
	MsgTextNonJSON  = "ingest:text_non_json"
	MsgInitRequired = "ingest:error:init_required"

	framesPrefix = "ingest:frames="
)

var (
	ErrNotJSON = errors.New("message is not JSON")
	ErrNotInit = errors.New("message is not an init descriptor")
)

// Init is the descriptor sent as the first frame of every connection
type Init struct {
	Type        string `json:"type" validate:"required,eq=init"`
	Format      string `json:"format" validate:"required"`
	TimesliceMs int    `json:"timeslice_ms" validate:"gt=0"`
}

// NewInit builds an init descriptor
func NewInit(format string, timesliceMs int) Init {
	return Init{Type: InitType, Format: format, TimesliceMs: timesliceMs}
}

// Validate checks the descriptor fields
func (i Init) Validate() error {
	return validator.Default().Validate(i)
}

// Marshal encodes the descriptor as a text frame payload
func (i Init) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

// ParseInit decodes and validates an init descriptor. It returns ErrNotJSON
// for non-JSON text and ErrNotInit when the type discriminator is not "init".
func ParseInit(data []byte) (Init, error) {
	var init Init
	if err := json.Unmarshal(data, &init); err != nil {
		return Init{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if init.Type != InitType {
		return Init{}, ErrNotInit
	}
	if err := init.Validate(); err != nil {
		return Init{}, err
	}
	return init, nil
}

// FramesAck builds the periodic frame counter message
func FramesAck(n int64) string {
	return framesPrefix + strconv.FormatInt(n, 10)
}

// ParseFramesAck extracts the counter from a FramesAck message
func ParseFramesAck(msg string) (int64, bool) {
	if !strings.HasPrefix(msg, framesPrefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(msg, framesPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Stats is the per-connection counter snapshot served by /ws/ingest/stats
type Stats struct {
	ID             string     `json:"id"`
	MeetingID      string     `json:"meeting_id,omitempty"`
	TotalBytes     int64      `json:"total_bytes"`
	FramesReceived int64      `json:"frames_received"`
	Init           *Init      `json:"init"`
	StartedAt      time.Time  `json:"started_at"`
	LastMessageAt  *time.Time `json:"last_message_at"`
	Closed         bool       `json:"closed"`
	CloseReason    *string    `json:"close_reason"`
	Remote         string     `json:"remote"`
}

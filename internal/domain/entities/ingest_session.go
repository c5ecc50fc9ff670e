package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Close reasons recorded on an ingest session
const (
	CloseReasonClientClosed   = "client_closed"
	CloseReasonInitRequired   = "init_required"
	CloseReasonInitTimeout    = "init_timeout"
	CloseReasonReadError      = "read_error"
	CloseReasonServerShutdown = "server_shutdown"
)

// IngestSession is one ingestion connection
type IngestSession struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	MeetingID      *uuid.UUID     `gorm:"type:uuid;index" json:"meeting_id,omitempty"`
	Meeting        *Meeting       `gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE" json:"-"`
	Remote         string         `gorm:"type:varchar(255);not null;default:''" json:"remote"`
	Init           datatypes.JSON `gorm:"type:jsonb" json:"init,omitempty"`
	TotalBytes     int64          `gorm:"not null;default:0" json:"total_bytes"`
	FramesReceived int64          `gorm:"not null;default:0" json:"frames_received"`
	StartedAt      time.Time      `gorm:"not null" json:"started_at"`
	LastMessageAt  *time.Time     `json:"last_message_at,omitempty"`
	ClosedAt       *time.Time     `gorm:"index" json:"closed_at,omitempty"`
	CloseReason    *string        `gorm:"type:varchar(64)" json:"close_reason,omitempty"`
	AudioObject    *string        `gorm:"type:text" json:"audio_object,omitempty"`
}

// TableName specifies the table name for IngestSession
func (IngestSession) TableName() string {
	return "ingest_sessions"
}

// BeforeCreate assigns an id and start timestamp when absent
func (s *IngestSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	return nil
}

// IsOpen reports whether the connection has not been closed yet
func (s *IngestSession) IsOpen() bool {
	return s.ClosedAt == nil
}

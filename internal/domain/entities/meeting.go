package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultMeetingTitle is used when a session does not name its meeting
const DefaultMeetingTitle = "Untitled Meeting"

// MeetingStatus is derived from EndTS and never stored
type MeetingStatus string

const (
	MeetingStatusOpen  MeetingStatus = "open"
	MeetingStatusEnded MeetingStatus = "ended"
)

// Meeting represents one recorded conversation
type Meeting struct {
	ID      uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Title   string     `gorm:"type:varchar(255);not null;default:'Untitled Meeting'" json:"title"`
	MeetURL *string    `gorm:"type:text" json:"meet_url,omitempty"`
	StartTS time.Time  `gorm:"column:start_ts;not null" json:"start_ts"`
	EndTS   *time.Time `gorm:"column:end_ts" json:"end_ts,omitempty"`
}

// TableName specifies the table name for Meeting
func (Meeting) TableName() string {
	return "meetings"
}

// BeforeCreate fills the id, title and start timestamp when absent
func (m *Meeting) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Title == "" {
		m.Title = DefaultMeetingTitle
	}
	if m.StartTS.IsZero() {
		m.StartTS = time.Now().UTC()
	}
	return nil
}

// IsEnded checks if the meeting has an end timestamp
func (m *Meeting) IsEnded() bool {
	return m.EndTS != nil
}

// Status returns the derived meeting status
func (m *Meeting) Status() MeetingStatus {
	if m.IsEnded() {
		return MeetingStatusEnded
	}
	return MeetingStatusOpen
}

// OffsetMs returns the meeting-relative offset of t in milliseconds
func (m *Meeting) OffsetMs(t time.Time) int64 {
	d := t.Sub(m.StartTS).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

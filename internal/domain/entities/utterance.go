package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Utterance represents a single speaker segment within a meeting.
// Offsets are milliseconds from the meeting start.
type Utterance struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	MeetingID    uuid.UUID  `json:"meeting_id" gorm:"type:uuid;not null;index:idx_utterances_meeting_time,priority:1"`
	Meeting      *Meeting   `json:"-" gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE"`
	SessionID    *uuid.UUID `json:"session_id,omitempty" gorm:"type:uuid;index"`
	SpeakerLabel *string    `json:"speaker_label,omitempty" gorm:"type:varchar(64)"`
	StartTimeMs  int64      `json:"start_time_ms" gorm:"not null;default:0;index:idx_utterances_meeting_time,priority:2"`
	EndTimeMs    int64      `json:"end_time_ms" gorm:"not null"`
	Text         string     `json:"text" gorm:"type:text;not null"`
	Lang         *string    `json:"lang,omitempty" gorm:"type:varchar(16)"`
	IsFinal      bool       `json:"is_final" gorm:"not null;default:false;index:idx_utterances_is_final"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Utterance) TableName() string {
	return "utterances"
}

// BeforeCreate assigns an id and enforces the timeline invariant
func (u *Utterance) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return u.Validate()
}

// Validate checks start <= end
func (u *Utterance) Validate() error {
	if u.StartTimeMs < 0 || u.StartTimeMs > u.EndTimeMs {
		return ErrInvalidTimeline
	}
	return nil
}

// Overlaps reports whether the utterance intersects [startMs, endMs]
func (u *Utterance) Overlaps(startMs, endMs int64) bool {
	return u.StartTimeMs <= endMs && u.EndTimeMs >= startMs
}

// SameAs reports whether both utterances carry the same session, timing,
// speaker, language and text
func (u *Utterance) SameAs(o *Utterance) bool {
	return sameUUID(u.SessionID, o.SessionID) &&
		u.StartTimeMs == o.StartTimeMs &&
		u.EndTimeMs == o.EndTimeMs &&
		u.Text == o.Text &&
		sameString(u.SpeakerLabel, o.SpeakerLabel) &&
		sameString(u.Lang, o.Lang)
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

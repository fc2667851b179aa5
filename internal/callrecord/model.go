package callrecord

import "time"

// Record is the metadata of one call leg. It holds no audio or transcript.
type Record struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	ConversationID string     `gorm:"index;size:128;not null" json:"conversation_id"`
	ConnID         string     `gorm:"size:64" json:"conn_id"`
	Caller         string     `gorm:"size:128" json:"caller,omitempty"`
	BotName        string     `gorm:"size:128" json:"bot_name,omitempty"`
	MediaFormat    string     `gorm:"size:32" json:"media_format"`
	Resumed        bool       `json:"resumed"`
	StartedAt      time.Time  `gorm:"index" json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ReasonCode     string     `gorm:"size:64" json:"reason_code,omitempty"`
	Reason         string     `gorm:"size:512" json:"reason,omitempty"`
}

func (Record) TableName() string {
	return "call_records"
}

func (r *Record) Open() bool {
	return r.EndedAt == nil
}

func (r *Record) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

package models

import "time"

// Notification is an outbound message recorded in the outbox.
type Notification struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index" json:"user_id,omitempty"` // owner when the recipient is the owner
	DocumentID uint       `gorm:"index" json:"document_id"`
	Type       string     `gorm:"size:50;not null" json:"type"` // ex: "brief_approved", "document_sent"
	Recipient  string     `gorm:"size:255;not null" json:"recipient"`
	Subject    string     `gorm:"size:255" json:"subject"`
	Message    string     `gorm:"type:text" json:"message"`
	Read       bool       `json:"read"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

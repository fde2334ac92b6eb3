package models

import "time"

// AccessAttempt is one failed password entry against a protected document.
// Rows are only inserted or deleted, never updated.
type AccessAttempt struct {
	ID         uint      `gorm:"primaryKey"`
	DocumentID uint      `gorm:"not null;index:idx_attempts_doc_identity,priority:1"`
	Identity   string    `gorm:"size:255;not null;index:idx_attempts_doc_identity,priority:2"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

package model

import "time"

// Document is one ingested file. Immutable after creation; its chunks carry
// the searchable text.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Filename  string    `gorm:"size:256;not null" json:"filename"`
	PageCount int       `gorm:"not null" json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   uint      `gorm:"not null;index" json:"session_id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Role        string    `gorm:"size:16;not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ContentHash string    `gorm:"size:64;not null" json:"content_hash"`
	Prediction  string    `gorm:"size:32" json:"prediction,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContentDigest returns the hex SHA-256 of the message content.
func ContentDigest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SealContent stamps the message with the digest of its current content.
func (m *Message) SealContent() {
	m.ContentHash = ContentDigest(m.Content)
}

// VerifyIntegrity recomputes the content digest and compares it to the
// stored hash. Used for audit reads; not enforced on every fetch.
func (m *Message) VerifyIntegrity() bool {
	return m.ContentHash != "" && m.ContentHash == ContentDigest(m.Content)
}

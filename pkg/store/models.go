package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type DocumentModel struct {
	ID         int    `gorm:"primaryKey;autoIncrement"`
	Filename   string `gorm:"not null"`
	Content    string `gorm:"type:text;not null"`
	Summary    string `gorm:"type:text"`
	UploadedAt time.Time `gorm:"not null"`
}

type ConversationModel struct {
	ID         int            `gorm:"primaryKey;autoIncrement"`
	DocumentID int            `gorm:"not null;index"`
	Mode       string         `gorm:"not null"`
	Messages   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

type ChallengeModel struct {
	ID              int            `gorm:"primaryKey;autoIncrement"`
	DocumentID      int            `gorm:"not null;index"`
	Questions       datatypes.JSON `gorm:"type:jsonb"`
	UserAnswers     datatypes.JSON `gorm:"type:jsonb"`
	Evaluations     datatypes.JSON `gorm:"type:jsonb"`
	CurrentQuestion int            `gorm:"not null"`
	Completed       bool           `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"not null;index"`
}

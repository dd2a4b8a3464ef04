package domain

import "time"

type ConversationMode string

const (
	ModeAsk ConversationMode = "ask"
)

type Document struct {
	ID         int       `json:"id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type Conversation struct {
	ID         int              `json:"id"`
	DocumentID int              `json:"documentId"`
	Mode       ConversationMode `json:"mode"`
	Messages   []Turn           `json:"messages"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type Challenge struct {
	ID              int       `json:"id"`
	DocumentID      int       `json:"documentId"`
	Questions       []string  `json:"questions"`
	UserAnswers     []string  `json:"userAnswers"`
	Evaluations     []string  `json:"evaluations"`
	CurrentQuestion int       `json:"currentQuestion"`
	Completed       bool      `json:"completed"`
	CreatedAt       time.Time `json:"createdAt"`
}

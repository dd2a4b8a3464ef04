package app

import "errors"

var (
	// ErrDocumentNotFound indicates the referenced document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrConversationNotFound indicates the referenced conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrChallengeNotFound indicates the referenced challenge does not exist.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeCompleted indicates an answer was submitted to a finished challenge.
	ErrChallengeCompleted = errors.New("challenge already completed")
)

package store

import (
	"time"

	"docmentor/pkg/domain"
)

// Store defines persistence operations for documents, conversations, and
// challenges. IDs are assigned by the store: auto-incrementing integers
// starting at 1 per entity kind. Updates replace the whole record keyed
// by its id.
type Store interface {
	// documents
	CreateDocument(doc domain.Document) (domain.Document, error)
	GetDocument(id int) (domain.Document, bool, error)

	// conversations
	CreateConversation(conv domain.Conversation) (domain.Conversation, error)
	GetConversation(id int) (domain.Conversation, bool, error)
	UpdateConversation(conv domain.Conversation) error

	// challenges
	CreateChallenge(ch domain.Challenge) (domain.Challenge, error)
	GetChallenge(id int) (domain.Challenge, bool, error)
	UpdateChallenge(ch domain.Challenge) error
}

// Pruner removes entities created before the cutoff. Stores may implement
// it to support the optional retention sweep.
type Pruner interface {
	PruneOlderThan(cutoff time.Time) (int, error)
}

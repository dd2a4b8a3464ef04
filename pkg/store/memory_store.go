package store

import (
	"fmt"
	"sync"
	"time"

	"docmentor/pkg/domain"
)

// MemoryStore keeps all records in-process. It is the default backing
// store; swap in GormStore for durable persistence.
type MemoryStore struct {
	mu            sync.RWMutex
	documents     map[int]domain.Document
	conversations map[int]domain.Conversation
	challenges    map[int]domain.Challenge

	nextDocumentID     int
	nextConversationID int
	nextChallengeID    int
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:          make(map[int]domain.Document),
		conversations:      make(map[int]domain.Conversation),
		challenges:         make(map[int]domain.Challenge),
		nextDocumentID:     1,
		nextConversationID: 1,
		nextChallengeID:    1,
	}
}

// CreateDocument stores a new document and assigns its id and upload time.
func (m *MemoryStore) CreateDocument(doc domain.Document) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ID = m.nextDocumentID
	m.nextDocumentID++
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	m.documents[doc.ID] = doc
	return doc, nil
}

// GetDocument retrieves a document by id.
func (m *MemoryStore) GetDocument(id int) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	return doc, ok, nil
}

// CreateConversation stores a new conversation and assigns its id.
func (m *MemoryStore) CreateConversation(conv domain.Conversation) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv.ID = m.nextConversationID
	m.nextConversationID++
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Turn{}
	}
	m.conversations[conv.ID] = conv
	return conv, nil
}

// GetConversation retrieves a conversation by id.
func (m *MemoryStore) GetConversation(id int) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	return conv, ok, nil
}

// UpdateConversation replaces a stored conversation.
func (m *MemoryStore) UpdateConversation(conv domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[conv.ID]; !ok {
		return fmt.Errorf("conversation %d not found", conv.ID)
	}
	m.conversations[conv.ID] = conv
	return nil
}

// CreateChallenge stores a new challenge and assigns its id.
func (m *MemoryStore) CreateChallenge(ch domain.Challenge) (domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch.ID = m.nextChallengeID
	m.nextChallengeID++
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	if ch.UserAnswers == nil {
		ch.UserAnswers = []string{}
	}
	if ch.Evaluations == nil {
		ch.Evaluations = []string{}
	}
	m.challenges[ch.ID] = ch
	return ch, nil
}

// GetChallenge retrieves a challenge by id.
func (m *MemoryStore) GetChallenge(id int) (domain.Challenge, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.challenges[id]
	return ch, ok, nil
}

// UpdateChallenge replaces a stored challenge.
func (m *MemoryStore) UpdateChallenge(ch domain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challenges[ch.ID]; !ok {
		return fmt.Errorf("challenge %d not found", ch.ID)
	}
	m.challenges[ch.ID] = ch
	return nil
}

// PruneOlderThan removes documents, conversations, and challenges created
// before the cutoff. Ids are never reused after pruning.
func (m *MemoryStore) PruneOlderThan(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, doc := range m.documents {
		if doc.UploadedAt.Before(cutoff) {
			delete(m.documents, id)
			removed++
		}
	}
	for id, conv := range m.conversations {
		if conv.CreatedAt.Before(cutoff) {
			delete(m.conversations, id)
			removed++
		}
	}
	for id, ch := range m.challenges {
		if ch.CreatedAt.Before(cutoff) {
			delete(m.challenges, id)
			removed++
		}
	}
	return removed, nil
}

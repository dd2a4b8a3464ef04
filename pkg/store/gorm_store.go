package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docmentor/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&DocumentModel{}, &ConversationModel{}, &ChallengeModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateDocument stores a new document and assigns its id and upload time.
func (s *GormStore) CreateDocument(doc domain.Document) (domain.Document, error) {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	model := DocumentModel{
		Filename:   doc.Filename,
		Content:    doc.Content,
		Summary:    doc.Summary,
		UploadedAt: doc.UploadedAt,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Document{}, fmt.Errorf("create document: %w", err)
	}
	doc.ID = model.ID
	return doc, nil
}

// GetDocument retrieves a document by id.
func (s *GormStore) GetDocument(id int) (domain.Document, bool, error) {
	var model DocumentModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("get document: %w", err)
	}
	return domain.Document{
		ID:         model.ID,
		Filename:   model.Filename,
		Content:    model.Content,
		Summary:    model.Summary,
		UploadedAt: model.UploadedAt,
	}, true, nil
}

// CreateConversation stores a new conversation and assigns its id.
func (s *GormStore) CreateConversation(conv domain.Conversation) (domain.Conversation, error) {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Turn{}
	}
	messages, err := marshalJSONColumn(conv.Messages)
	if err != nil {
		return domain.Conversation{}, err
	}
	model := ConversationModel{
		DocumentID: conv.DocumentID,
		Mode:       string(conv.Mode),
		Messages:   messages,
		CreatedAt:  conv.CreatedAt,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	conv.ID = model.ID
	return conv, nil
}

// GetConversation retrieves a conversation by id.
func (s *GormStore) GetConversation(id int) (domain.Conversation, bool, error) {
	var model ConversationModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("get conversation: %w", err)
	}
	conv, err := conversationFromModel(model)
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conv, true, nil
}

// UpdateConversation replaces a stored conversation.
func (s *GormStore) UpdateConversation(conv domain.Conversation) error {
	messages, err := marshalJSONColumn(conv.Messages)
	if err != nil {
		return err
	}
	res := s.db.Model(&ConversationModel{}).Where("id = ?", conv.ID).Updates(map[string]any{
		"messages": messages,
	})
	if res.Error != nil {
		return fmt.Errorf("update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("conversation %d not found", conv.ID)
	}
	return nil
}

// CreateChallenge stores a new challenge and assigns its id.
func (s *GormStore) CreateChallenge(ch domain.Challenge) (domain.Challenge, error) {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	if ch.UserAnswers == nil {
		ch.UserAnswers = []string{}
	}
	if ch.Evaluations == nil {
		ch.Evaluations = []string{}
	}
	questions, err := marshalJSONColumn(ch.Questions)
	if err != nil {
		return domain.Challenge{}, err
	}
	answers, err := marshalJSONColumn(ch.UserAnswers)
	if err != nil {
		return domain.Challenge{}, err
	}
	evaluations, err := marshalJSONColumn(ch.Evaluations)
	if err != nil {
		return domain.Challenge{}, err
	}
	model := ChallengeModel{
		DocumentID:      ch.DocumentID,
		Questions:       questions,
		UserAnswers:     answers,
		Evaluations:     evaluations,
		CurrentQuestion: ch.CurrentQuestion,
		Completed:       ch.Completed,
		CreatedAt:       ch.CreatedAt,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Challenge{}, fmt.Errorf("create challenge: %w", err)
	}
	ch.ID = model.ID
	return ch, nil
}

// GetChallenge retrieves a challenge by id.
func (s *GormStore) GetChallenge(id int) (domain.Challenge, bool, error) {
	var model ChallengeModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Challenge{}, false, nil
	}
	if err != nil {
		return domain.Challenge{}, false, fmt.Errorf("get challenge: %w", err)
	}
	ch, err := challengeFromModel(model)
	if err != nil {
		return domain.Challenge{}, false, err
	}
	return ch, true, nil
}

// UpdateChallenge replaces a stored challenge.
func (s *GormStore) UpdateChallenge(ch domain.Challenge) error {
	answers, err := marshalJSONColumn(ch.UserAnswers)
	if err != nil {
		return err
	}
	evaluations, err := marshalJSONColumn(ch.Evaluations)
	if err != nil {
		return err
	}
	res := s.db.Model(&ChallengeModel{}).Where("id = ?", ch.ID).Updates(map[string]any{
		"user_answers":     answers,
		"evaluations":      evaluations,
		"current_question": ch.CurrentQuestion,
		"completed":        ch.Completed,
	})
	if res.Error != nil {
		return fmt.Errorf("update challenge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("challenge %d not found", ch.ID)
	}
	return nil
}

// PruneOlderThan removes entities created before the cutoff.
func (s *GormStore) PruneOlderThan(cutoff time.Time) (int, error) {
	removed := 0
	res := s.db.Where("uploaded_at < ?", cutoff).Delete(&DocumentModel{})
	if res.Error != nil {
		return removed, fmt.Errorf("prune documents: %w", res.Error)
	}
	removed += int(res.RowsAffected)
	res = s.db.Where("created_at < ?", cutoff).Delete(&ConversationModel{})
	if res.Error != nil {
		return removed, fmt.Errorf("prune conversations: %w", res.Error)
	}
	removed += int(res.RowsAffected)
	res = s.db.Where("created_at < ?", cutoff).Delete(&ChallengeModel{})
	if res.Error != nil {
		return removed, fmt.Errorf("prune challenges: %w", res.Error)
	}
	removed += int(res.RowsAffected)
	return removed, nil
}

func marshalJSONColumn(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return datatypes.JSON(data), nil
}

func conversationFromModel(model ConversationModel) (domain.Conversation, error) {
	var messages []domain.Turn
	if len(model.Messages) > 0 {
		if err := json.Unmarshal(model.Messages, &messages); err != nil {
			return domain.Conversation{}, fmt.Errorf("decode messages: %w", err)
		}
	}
	if messages == nil {
		messages = []domain.Turn{}
	}
	return domain.Conversation{
		ID:         model.ID,
		DocumentID: model.DocumentID,
		Mode:       domain.ConversationMode(model.Mode),
		Messages:   messages,
		CreatedAt:  model.CreatedAt,
	}, nil
}

func challengeFromModel(model ChallengeModel) (domain.Challenge, error) {
	var questions, answers, evaluations []string
	if len(model.Questions) > 0 {
		if err := json.Unmarshal(model.Questions, &questions); err != nil {
			return domain.Challenge{}, fmt.Errorf("decode questions: %w", err)
		}
	}
	if len(model.UserAnswers) > 0 {
		if err := json.Unmarshal(model.UserAnswers, &answers); err != nil {
			return domain.Challenge{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	if len(model.Evaluations) > 0 {
		if err := json.Unmarshal(model.Evaluations, &evaluations); err != nil {
			return domain.Challenge{}, fmt.Errorf("decode evaluations: %w", err)
		}
	}
	if answers == nil {
		answers = []string{}
	}
	if evaluations == nil {
		evaluations = []string{}
	}
	return domain.Challenge{
		ID:              model.ID,
		DocumentID:      model.DocumentID,
		Questions:       questions,
		UserAnswers:     answers,
		Evaluations:     evaluations,
		CurrentQuestion: model.CurrentQuestion,
		Completed:       model.Completed,
		CreatedAt:       model.CreatedAt,
	}, nil
}

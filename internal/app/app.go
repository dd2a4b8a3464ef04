package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"docmentor/internal/engine"
	"docmentor/internal/extract"
	"docmentor/pkg/domain"
	"docmentor/pkg/storage"
	"docmentor/pkg/store"
)

// ModelEngine is the set of model-backed operations the state machine
// delegates to.
type ModelEngine interface {
	Summarize(ctx context.Context, content string) (string, error)
	Answer(ctx context.Context, documentText, question string, priorTurns []domain.Turn) (string, error)
	GenerateQuestions(ctx context.Context, documentText string) ([]string, error)
	Evaluate(ctx context.Context, documentText, question, userAnswer string) (string, error)
}

// Config holds runtime dependencies for the core application.
type Config struct {
	Store   store.Store
	Engine  ModelEngine
	Archive storage.ObjectStore // optional raw-upload archival
}

// App is the core application service: the conversation and challenge
// state machines over a backing store, delegating model work to Engine.
type App struct {
	store   store.Store
	engine  ModelEngine
	archive storage.ObjectStore
	locks   *keyedMutex
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine required")
	}
	return &App{
		store:   cfg.Store,
		engine:  cfg.Engine,
		archive: cfg.Archive,
		locks:   newKeyedMutex(),
	}, nil
}

// UploadDocument extracts text from the uploaded file, summarizes it, and
// stores the document. Summarization degrades to a fallback summary on a
// persistently unavailable provider and never fails the upload for
// transient reasons.
func (a *App) UploadDocument(ctx context.Context, filename, path string) (domain.Document, error) {
	content, err := extract.Text(filename, path)
	if err != nil {
		return domain.Document{}, err
	}
	summary, err := a.engine.Summarize(ctx, content)
	if err != nil {
		return domain.Document{}, err
	}
	doc, err := a.store.CreateDocument(domain.Document{
		Filename: filename,
		Content:  content,
		Summary:  summary,
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("store document: %w", err)
	}
	a.archiveOriginal(ctx, doc, path)
	return doc, nil
}

// archiveOriginal copies the raw upload to object storage when an archive
// is configured. Best effort: failures are logged, never surfaced.
func (a *App) archiveOriginal(ctx context.Context, doc domain.Document, path string) {
	if a.archive == nil {
		return
	}
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("archive original failed", "document_id", doc.ID, "err", err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		slog.Warn("archive original failed", "document_id", doc.ID, "err", err)
		return
	}
	key := fmt.Sprintf("documents/%d/%s/%s", doc.ID, uuid.NewString(), doc.Filename)
	contentType := "text/plain"
	if strings.HasSuffix(strings.ToLower(doc.Filename), ".pdf") {
		contentType = "application/pdf"
	}
	if err := a.archive.Put(ctx, key, file, info.Size(), contentType); err != nil {
		slog.Warn("archive original failed", "document_id", doc.ID, "key", key, "err", err)
		return
	}
	slog.Info("archived original upload", "document_id", doc.ID, "key", key)
}

// GetDocument retrieves a document by id.
func (a *App) GetDocument(id int) (domain.Document, error) {
	doc, ok, err := a.store.GetDocument(id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return domain.Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// GetConversation retrieves a conversation by id.
func (a *App) GetConversation(id int) (domain.Conversation, error) {
	conv, ok, err := a.store.GetConversation(id)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// GetChallenge retrieves a challenge by id.
func (a *App) GetChallenge(id int) (domain.Challenge, error) {
	ch, ok, err := a.store.GetChallenge(id)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("load challenge: %w", err)
	}
	if !ok {
		return domain.Challenge{}, ErrChallengeNotFound
	}
	return ch, nil
}

// AskResult is the outcome of one ask turn.
type AskResult struct {
	Answer         string
	ConversationID int
}

// Ask answers a question grounded in the document, resolving or creating
// the conversation and appending the user and assistant turns on success.
// The answer is produced against the history as it was before this call;
// on any failure the conversation is left unmutated.
func (a *App) Ask(ctx context.Context, documentID int, question string, conversationID int) (AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return AskResult{}, fmt.Errorf("question required")
	}
	doc, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return AskResult{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return AskResult{}, ErrDocumentNotFound
	}

	conversation, err := a.ensureConversation(documentID, conversationID)
	if err != nil {
		return AskResult{}, err
	}

	// Serialize asks per conversation: the provider call must see the
	// history prior to its own turns, and appends are read-modify-write.
	unlock := a.locks.lock("conversation", conversation.ID)
	defer unlock()

	conversation, ok, err = a.store.GetConversation(conversation.ID)
	if err != nil {
		return AskResult{}, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return AskResult{}, ErrConversationNotFound
	}

	answer, err := a.engine.Answer(ctx, doc.Content, question, conversation.Messages)
	if err != nil {
		return AskResult{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	conversation.Messages = append(conversation.Messages,
		domain.Turn{Role: "user", Content: question, Timestamp: now},
		domain.Turn{Role: "assistant", Content: answer, Timestamp: now},
	)
	if err := a.store.UpdateConversation(conversation); err != nil {
		return AskResult{}, fmt.Errorf("save conversation: %w", err)
	}
	return AskResult{Answer: answer, ConversationID: conversation.ID}, nil
}

// ensureConversation resolves an existing conversation or creates a fresh
// one for the document. An unknown id falls through to a new conversation
// rather than failing, so stale clients keep working.
func (a *App) ensureConversation(documentID, conversationID int) (domain.Conversation, error) {
	if conversationID > 0 {
		conversation, ok, err := a.store.GetConversation(conversationID)
		if err != nil {
			return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
		}
		if ok {
			return conversation, nil
		}
	}
	conversation, err := a.store.CreateConversation(domain.Conversation{
		DocumentID: documentID,
		Mode:       domain.ModeAsk,
		Messages:   []domain.Turn{},
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

// ChallengeStart is the outcome of starting a challenge.
type ChallengeStart struct {
	ChallengeID    int
	Question       string
	QuestionNumber int
	TotalQuestions int
}

// StartChallenge generates comprehension questions for the document and
// creates a fresh challenge at question zero. Starting a new challenge
// never touches earlier ones for the same document.
func (a *App) StartChallenge(ctx context.Context, documentID int) (ChallengeStart, error) {
	doc, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return ChallengeStart{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return ChallengeStart{}, ErrDocumentNotFound
	}

	questions, err := a.engine.GenerateQuestions(ctx, doc.Content)
	if err != nil {
		return ChallengeStart{}, err
	}

	challenge, err := a.store.CreateChallenge(domain.Challenge{
		DocumentID:      documentID,
		Questions:       questions,
		UserAnswers:     []string{},
		Evaluations:     []string{},
		CurrentQuestion: 0,
		Completed:       false,
	})
	if err != nil {
		return ChallengeStart{}, fmt.Errorf("store challenge: %w", err)
	}
	return ChallengeStart{
		ChallengeID:    challenge.ID,
		Question:       questions[0],
		QuestionNumber: 1,
		TotalQuestions: len(questions),
	}, nil
}

// AnswerResult is the outcome of submitting one challenge answer.
type AnswerResult struct {
	Evaluation         string
	IsCompleted        bool
	QuestionNumber     int
	TotalQuestions     int
	NextQuestion       string
	NextQuestionNumber int
}

// SubmitAnswer evaluates the answer to the current question, records it,
// and advances the challenge. A completed challenge rejects further
// submissions; its record never changes again.
func (a *App) SubmitAnswer(ctx context.Context, challengeID int, answer string) (AnswerResult, error) {
	// Serialize per challenge: the question index advance is
	// read-modify-write and the provider call must target the question
	// that was current when this submission arrived.
	unlock := a.locks.lock("challenge", challengeID)
	defer unlock()

	challenge, ok, err := a.store.GetChallenge(challengeID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("load challenge: %w", err)
	}
	if !ok {
		return AnswerResult{}, ErrChallengeNotFound
	}
	if challenge.Completed {
		return AnswerResult{}, ErrChallengeCompleted
	}
	doc, ok, err := a.store.GetDocument(challenge.DocumentID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return AnswerResult{}, ErrDocumentNotFound
	}

	questionIndex := challenge.CurrentQuestion
	question := challenge.Questions[questionIndex]

	evaluation, err := a.engine.Evaluate(ctx, doc.Content, question, answer)
	if err != nil {
		return AnswerResult{}, err
	}

	challenge.UserAnswers = append(challenge.UserAnswers, answer)
	challenge.Evaluations = append(challenge.Evaluations, evaluation)
	challenge.CurrentQuestion = questionIndex + 1
	challenge.Completed = challenge.CurrentQuestion == len(challenge.Questions)
	if err := a.store.UpdateChallenge(challenge); err != nil {
		return AnswerResult{}, fmt.Errorf("save challenge: %w", err)
	}

	result := AnswerResult{
		Evaluation:     evaluation,
		IsCompleted:    challenge.Completed,
		QuestionNumber: questionIndex + 1,
		TotalQuestions: len(challenge.Questions),
	}
	if !challenge.Completed {
		result.NextQuestion = challenge.Questions[challenge.CurrentQuestion]
		result.NextQuestionNumber = challenge.CurrentQuestion + 1
	}
	return result, nil
}

var _ ModelEngine = (*engine.Engine)(nil)

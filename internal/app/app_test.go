package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"docmentor/pkg/domain"
	"docmentor/pkg/store"
)

type fakeEngine struct {
	summarize func(content string) (string, error)
	answer    func(documentText, question string, priorTurns []domain.Turn) (string, error)
	questions func(documentText string) ([]string, error)
	evaluate  func(documentText, question, userAnswer string) (string, error)
}

func (f *fakeEngine) Summarize(_ context.Context, content string) (string, error) {
	if f.summarize != nil {
		return f.summarize(content)
	}
	return "a summary", nil
}

func (f *fakeEngine) Answer(_ context.Context, documentText, question string, priorTurns []domain.Turn) (string, error) {
	if f.answer != nil {
		return f.answer(documentText, question, priorTurns)
	}
	return "an answer", nil
}

func (f *fakeEngine) GenerateQuestions(_ context.Context, documentText string) ([]string, error) {
	if f.questions != nil {
		return f.questions(documentText)
	}
	return []string{"Q1?", "Q2?", "Q3?"}, nil
}

func (f *fakeEngine) Evaluate(_ context.Context, documentText, question, userAnswer string) (string, error) {
	if f.evaluate != nil {
		return f.evaluate(documentText, question, userAnswer)
	}
	return "feedback for " + question, nil
}

func newTestApp(t *testing.T, eng ModelEngine) (*App, *store.MemoryStore) {
	t.Helper()
	if eng == nil {
		eng = &fakeEngine{}
	}
	s := store.NewMemoryStore()
	a, err := New(Config{Store: s, Engine: eng})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, s
}

func seedDocument(t *testing.T, s *store.MemoryStore, content string) domain.Document {
	t.Helper()
	doc, err := s.CreateDocument(domain.Document{Filename: "doc.txt", Content: content, Summary: "s"})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func TestAskCreatesConversationAndAppendsTurns(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")

	res, err := a.Ask(context.Background(), doc.ID, "What is this about?", 0)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if res.ConversationID != 1 {
		t.Fatalf("conversation id = %d, want 1", res.ConversationID)
	}
	if res.Answer == "" {
		t.Fatalf("answer is empty")
	}

	conv, err := a.GetConversation(res.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != "user" || conv.Messages[0].Content != "What is this about?" {
		t.Fatalf("first turn = %+v", conv.Messages[0])
	}
	if conv.Messages[1].Role != "assistant" || conv.Messages[1].Content != res.Answer {
		t.Fatalf("second turn = %+v", conv.Messages[1])
	}
	if conv.Messages[0].Timestamp == "" || conv.Messages[1].Timestamp == "" {
		t.Fatalf("turn timestamps missing")
	}
}

func TestAskMessageSequenceAlternates(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")

	convID := 0
	for i := 0; i < 3; i++ {
		res, err := a.Ask(context.Background(), doc.ID, fmt.Sprintf("question %d", i), convID)
		if err != nil {
			t.Fatalf("Ask() error: %v", err)
		}
		convID = res.ConversationID
	}

	conv, err := a.GetConversation(convID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(conv.Messages) != 6 {
		t.Fatalf("messages = %d, want 6", len(conv.Messages))
	}
	for i, msg := range conv.Messages {
		want := "user"
		if i%2 == 1 {
			want = "assistant"
		}
		if msg.Role != want {
			t.Fatalf("message %d role = %q, want %q", i, msg.Role, want)
		}
	}
}

func TestAskUsesHistoryPriorToNewTurn(t *testing.T) {
	var seenTurns []int
	eng := &fakeEngine{answer: func(_, _ string, priorTurns []domain.Turn) (string, error) {
		seenTurns = append(seenTurns, len(priorTurns))
		return "ok", nil
	}}
	a, s := newTestApp(t, eng)
	doc := seedDocument(t, s, "body")

	convID := 0
	for i := 0; i < 3; i++ {
		res, err := a.Ask(context.Background(), doc.ID, "q", convID)
		if err != nil {
			t.Fatalf("Ask() error: %v", err)
		}
		convID = res.ConversationID
	}
	for i, n := range seenTurns {
		if n != i*2 {
			t.Fatalf("ask %d saw %d prior turns, want %d", i, n, i*2)
		}
	}
}

func TestAskMissingDocumentCreatesNothing(t *testing.T) {
	a, s := newTestApp(t, nil)
	if _, err := a.Ask(context.Background(), 9999, "x", 0); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("Ask() error = %v, want ErrDocumentNotFound", err)
	}
	if _, ok, _ := s.GetConversation(1); ok {
		t.Fatalf("no conversation should be created for a missing document")
	}
}

func TestAskEngineFailureLeavesConversationUnmutated(t *testing.T) {
	eng := &fakeEngine{answer: func(string, string, []domain.Turn) (string, error) {
		return "", errors.New("provider down")
	}}
	a, s := newTestApp(t, eng)
	doc := seedDocument(t, s, "body")

	conv, err := s.CreateConversation(domain.Conversation{DocumentID: doc.ID, Mode: domain.ModeAsk})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := a.Ask(context.Background(), doc.ID, "q", conv.ID); err == nil {
		t.Fatalf("expected provider error")
	}
	got, _, _ := s.GetConversation(conv.ID)
	if len(got.Messages) != 0 {
		t.Fatalf("messages = %d, want 0 (no partial append)", len(got.Messages))
	}
}

func TestAskUnknownConversationIDStartsFresh(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")
	res, err := a.Ask(context.Background(), doc.ID, "q", 42)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if res.ConversationID != 1 {
		t.Fatalf("conversation id = %d, want a fresh conversation", res.ConversationID)
	}
}

func TestStartChallengeReturnsThreeQuestions(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")

	start, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}
	if start.ChallengeID != 1 {
		t.Fatalf("challenge id = %d, want 1", start.ChallengeID)
	}
	if start.QuestionNumber != 1 || start.TotalQuestions != 3 {
		t.Fatalf("question %d of %d, want 1 of 3", start.QuestionNumber, start.TotalQuestions)
	}
	if start.Question != "Q1?" {
		t.Fatalf("first question = %q", start.Question)
	}

	ch, err := a.GetChallenge(start.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if ch.CurrentQuestion != 0 || ch.Completed {
		t.Fatalf("fresh challenge state = %+v", ch)
	}
	if len(ch.UserAnswers) != 0 || len(ch.Evaluations) != 0 {
		t.Fatalf("fresh challenge should have empty answers/evaluations")
	}
}

func TestStartChallengeMissingDocument(t *testing.T) {
	a, _ := newTestApp(t, nil)
	if _, err := a.StartChallenge(context.Background(), 7); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("StartChallenge() error = %v, want ErrDocumentNotFound", err)
	}
}

func TestSubmitAnswerProgression(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")
	start, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}

	for k := 1; k <= 3; k++ {
		res, err := a.SubmitAnswer(context.Background(), start.ChallengeID, fmt.Sprintf("answer %d", k))
		if err != nil {
			t.Fatalf("SubmitAnswer() %d error: %v", k, err)
		}
		if res.QuestionNumber != k {
			t.Fatalf("question number = %d, want %d", res.QuestionNumber, k)
		}
		if res.TotalQuestions != 3 {
			t.Fatalf("total questions = %d, want 3", res.TotalQuestions)
		}
		if res.IsCompleted != (k == 3) {
			t.Fatalf("isCompleted after %d answers = %v", k, res.IsCompleted)
		}
		if k < 3 {
			if res.NextQuestion == "" || res.NextQuestionNumber != k+1 {
				t.Fatalf("next question after %d answers = %q (number %d)", k, res.NextQuestion, res.NextQuestionNumber)
			}
		} else if res.NextQuestion != "" || res.NextQuestionNumber != 0 {
			t.Fatalf("completed challenge should carry no next question, got %q", res.NextQuestion)
		}

		ch, err := a.GetChallenge(start.ChallengeID)
		if err != nil {
			t.Fatalf("get challenge: %v", err)
		}
		if ch.CurrentQuestion != k {
			t.Fatalf("currentQuestion = %d, want %d", ch.CurrentQuestion, k)
		}
		if len(ch.UserAnswers) != k || len(ch.Evaluations) != k {
			t.Fatalf("answers/evaluations = %d/%d, want %d/%d", len(ch.UserAnswers), len(ch.Evaluations), k, k)
		}
		if ch.Completed != (k == 3) {
			t.Fatalf("completed after %d answers = %v", k, ch.Completed)
		}
	}
}

func TestSubmitAnswerEvaluatesCurrentQuestion(t *testing.T) {
	var evaluated []string
	eng := &fakeEngine{evaluate: func(_, question, _ string) (string, error) {
		evaluated = append(evaluated, question)
		return "fine", nil
	}}
	a, s := newTestApp(t, eng)
	doc := seedDocument(t, s, "body")
	start, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}
	for k := 0; k < 3; k++ {
		if _, err := a.SubmitAnswer(context.Background(), start.ChallengeID, "a"); err != nil {
			t.Fatalf("SubmitAnswer() error: %v", err)
		}
	}
	want := []string{"Q1?", "Q2?", "Q3?"}
	for i := range want {
		if evaluated[i] != want[i] {
			t.Fatalf("evaluated[%d] = %q, want %q", i, evaluated[i], want[i])
		}
	}
}

func TestSubmitAnswerOnCompletedChallengeRejected(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")
	start, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}
	for k := 0; k < 3; k++ {
		if _, err := a.SubmitAnswer(context.Background(), start.ChallengeID, "a"); err != nil {
			t.Fatalf("SubmitAnswer() error: %v", err)
		}
	}
	before, _ := a.GetChallenge(start.ChallengeID)

	if _, err := a.SubmitAnswer(context.Background(), start.ChallengeID, "extra"); !errors.Is(err, ErrChallengeCompleted) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrChallengeCompleted", err)
	}

	after, _ := a.GetChallenge(start.ChallengeID)
	if after.CurrentQuestion != before.CurrentQuestion ||
		len(after.UserAnswers) != len(before.UserAnswers) ||
		len(after.Evaluations) != len(before.Evaluations) {
		t.Fatalf("completed challenge mutated: before %+v after %+v", before, after)
	}
}

func TestSubmitAnswerEngineFailureLeavesChallengeUnmutated(t *testing.T) {
	eng := &fakeEngine{evaluate: func(string, string, string) (string, error) {
		return "", errors.New("provider down")
	}}
	a, s := newTestApp(t, eng)
	doc := seedDocument(t, s, "body")
	start, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}
	if _, err := a.SubmitAnswer(context.Background(), start.ChallengeID, "a"); err == nil {
		t.Fatalf("expected provider error")
	}
	ch, _ := a.GetChallenge(start.ChallengeID)
	if ch.CurrentQuestion != 0 || len(ch.UserAnswers) != 0 || len(ch.Evaluations) != 0 {
		t.Fatalf("challenge mutated on failed evaluation: %+v", ch)
	}
}

func TestSubmitAnswerMissingChallenge(t *testing.T) {
	a, _ := newTestApp(t, nil)
	if _, err := a.SubmitAnswer(context.Background(), 12, "a"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrChallengeNotFound", err)
	}
}

func TestConcurrentChallengesAreIndependent(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")
	first, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}
	if _, err := a.SubmitAnswer(context.Background(), first.ChallengeID, "a"); err != nil {
		t.Fatalf("SubmitAnswer() error: %v", err)
	}
	second, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}
	if second.ChallengeID == first.ChallengeID {
		t.Fatalf("new challenge reused id %d", first.ChallengeID)
	}
	ch1, _ := a.GetChallenge(first.ChallengeID)
	ch2, _ := a.GetChallenge(second.ChallengeID)
	if ch1.CurrentQuestion != 1 || ch2.CurrentQuestion != 0 {
		t.Fatalf("challenges interacted: %d and %d", ch1.CurrentQuestion, ch2.CurrentQuestion)
	}
}

func TestConcurrentSubmitAnswersSerialize(t *testing.T) {
	a, s := newTestApp(t, nil)
	doc := seedDocument(t, s, "body")
	start, err := a.StartChallenge(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.SubmitAnswer(context.Background(), start.ChallengeID, fmt.Sprintf("answer %d", i))
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrChallengeCompleted):
			rejected++
		default:
			t.Fatalf("SubmitAnswer() %d error: %v", i, err)
		}
	}
	if succeeded != 3 || rejected != workers-3 {
		t.Fatalf("succeeded/rejected = %d/%d, want 3/%d", succeeded, rejected, workers-3)
	}

	ch, err := a.GetChallenge(start.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if ch.CurrentQuestion != 3 || !ch.Completed {
		t.Fatalf("final challenge state = %+v", ch)
	}
	if len(ch.UserAnswers) != 3 || len(ch.Evaluations) != 3 {
		t.Fatalf("answers/evaluations = %d/%d, want 3/3", len(ch.UserAnswers), len(ch.Evaluations))
	}
}

func TestConcurrentAsksSerialize(t *testing.T) {
	var mu sync.Mutex
	var seenTurns []int
	eng := &fakeEngine{answer: func(_, _ string, priorTurns []domain.Turn) (string, error) {
		mu.Lock()
		seenTurns = append(seenTurns, len(priorTurns))
		mu.Unlock()
		return "ok", nil
	}}
	a, s := newTestApp(t, eng)
	doc := seedDocument(t, s, "body")

	first, err := a.Ask(context.Background(), doc.ID, "opening", 0)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := a.Ask(context.Background(), doc.ID, fmt.Sprintf("question %d", i), first.ConversationID); err != nil {
				t.Errorf("Ask() %d error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	conv, err := a.GetConversation(first.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(conv.Messages) != 2*(workers+1) {
		t.Fatalf("messages = %d, want %d", len(conv.Messages), 2*(workers+1))
	}
	for i, msg := range conv.Messages {
		want := "user"
		if i%2 == 1 {
			want = "assistant"
		}
		if msg.Role != want {
			t.Fatalf("message %d role = %q, want %q", i, msg.Role, want)
		}
	}

	// Each ask must have observed a settled history: an even turn count,
	// one per completed exchange, with no count repeated.
	sort.Ints(seenTurns)
	for i, n := range seenTurns {
		if n != i*2 {
			t.Fatalf("prior turn counts = %v, want 0,2,...,%d", seenTurns, 2*workers)
		}
	}
}

func TestGetDocumentMissing(t *testing.T) {
	a, _ := newTestApp(t, nil)
	if _, err := a.GetDocument(1); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("GetDocument() error = %v, want ErrDocumentNotFound", err)
	}
}

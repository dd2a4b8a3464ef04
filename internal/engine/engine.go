package engine

import (
	"time"

	"docmentor/pkg/ai"
)

// ChallengeQuestionCount is the fixed number of questions per challenge.
const ChallengeQuestionCount = 3

const (
	defaultSummaryMaxAttempts = 3
	defaultSummaryInitialWait = 2 * time.Second
)

// Engine implements the model-backed operations: summarization, grounded
// question answering, challenge question generation, and answer evaluation.
// All calls are stateless; grounding state lives with the caller.
type Engine struct {
	generator ai.TextGenerator

	summaryMaxAttempts int
	summaryInitialWait time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSummaryRetry overrides the summarization retry policy. Attempts is
// the total number of provider calls; waits double from initialWait
// between attempts.
func WithSummaryRetry(attempts int, initialWait time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.summaryMaxAttempts = attempts
		}
		if initialWait > 0 {
			e.summaryInitialWait = initialWait
		}
	}
}

// New constructs an Engine over the given text generator.
func New(generator ai.TextGenerator, options ...Option) *Engine {
	e := &Engine{
		generator:          generator,
		summaryMaxAttempts: defaultSummaryMaxAttempts,
		summaryInitialWait: defaultSummaryInitialWait,
	}
	for _, option := range options {
		if option != nil {
			option(e)
		}
	}
	return e
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docmentor/pkg/ai"
)

const summarySystemPrompt = "You are a document summarization expert. Create concise summaries that capture the main points and key insights of documents. Keep summaries under 150 words."

// unavailableSummary stands in for a successful provider call that came
// back with no text.
const unavailableSummary = "Unable to generate summary"

// Summarize produces a short summary of the document content.
//
// Transient provider failures (rate limited, overloaded) are retried with
// exponential backoff; when retries are exhausted a deterministic fallback
// summary is returned instead of an error, so an upload never fails on a
// degraded provider. Non-transient failures propagate. This is the only
// operation with a retry policy; the ask/challenge/evaluate paths surface
// provider errors directly.
func (e *Engine) Summarize(ctx context.Context, content string) (string, error) {
	userPrompt := fmt.Sprintf("Please provide a concise summary (maximum 150 words) of the following document:\n\n%s", content)

	var lastErr error
	wait := e.summaryInitialWait
	for attempt := 1; attempt <= e.summaryMaxAttempts; attempt++ {
		summary, err := e.generator.GenerateText(ctx, summarySystemPrompt, userPrompt)
		if err == nil {
			summary = strings.TrimSpace(summary)
			if summary == "" {
				summary = unavailableSummary
			}
			return summary, nil
		}
		lastErr = err
		if !ai.IsTransient(err) {
			return "", fmt.Errorf("summarize document: %w", err)
		}
		if attempt == e.summaryMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	slog.Warn("summary fallback after retries", "attempts", e.summaryMaxAttempts, "err", lastErr)
	return FallbackSummary(content), nil
}

// FallbackSummary is the deterministic summary substituted when the
// provider stays unavailable through all retries.
func FallbackSummary(content string) string {
	words := (len(content) + 3) / 6
	return fmt.Sprintf("Document uploaded successfully. Summary temporarily unavailable due to AI service issues. The document contains approximately %d words and is ready for analysis.", words)
}

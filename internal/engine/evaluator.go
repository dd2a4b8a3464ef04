package engine

import (
	"context"
	"fmt"
	"strings"
)

const evaluationSystemPromptFormat = `You are an expert evaluator of comprehension answers. Evaluate the user's answer based on accuracy, depth of understanding, and how well it addresses the question. Provide constructive feedback, highlight what was done well, and suggest improvements. Always reference specific parts of the document to support your evaluation.

Document content:
%s

Question: %s`

// Evaluate judges a user's answer to a challenge question against the
// document and returns the feedback prose verbatim.
func (e *Engine) Evaluate(ctx context.Context, documentText, question, userAnswer string) (string, error) {
	systemPrompt := fmt.Sprintf(evaluationSystemPromptFormat, documentText, question)
	userPrompt := fmt.Sprintf("Please evaluate this answer: %s", userAnswer)
	feedback, err := e.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("evaluate answer: %w", err)
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return "", fmt.Errorf("evaluate answer: empty response from provider")
	}
	return feedback, nil
}

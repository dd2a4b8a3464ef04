package engine

import (
	"context"
	"fmt"
	"strings"

	"docmentor/pkg/domain"
)

const qaSystemPromptFormat = `You are an intelligent document analysis assistant. Answer questions based ONLY on the provided document content. Always include specific references to sections, paragraphs, or quotes from the document to justify your answers. If the document doesn't contain information to answer the question, clearly state that. Format your response with the answer followed by a reference section.

Document content:
%s`

// Answer responds to a question grounded in the document text, taking the
// prior conversation turns into account. It is stateless: the caller owns
// the history and appends the new turns itself.
func (e *Engine) Answer(ctx context.Context, documentText, question string, priorTurns []domain.Turn) (string, error) {
	systemPrompt := fmt.Sprintf(qaSystemPromptFormat, documentText)
	userPrompt := fmt.Sprintf("Previous conversation:\n%s\n\nNew question: %s", historyText(priorTurns), question)
	answer, err := e.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("answer question: empty response from provider")
	}
	return answer, nil
}

func historyText(turns []domain.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

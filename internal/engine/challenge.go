package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const challengeSystemPrompt = `You are an expert at creating thoughtful comprehension questions. Generate exactly 3 challenging questions that test deep understanding, critical thinking, and inference skills based on the document content. Questions should require more than simple recall and should encourage analysis and reasoning. Return the response as a JSON object with a "questions" array.`

// Default questions used when the provider response cannot be parsed at all.
var defaultChallengeQuestions = []string{
	"What are the main themes or key points discussed in this document?",
	"How do the ideas presented relate to or build upon each other?",
	"What conclusions can you draw from the information provided?",
}

// GenerateQuestions asks the provider for exactly three comprehension
// questions about the document. Model output is free text in practice, so
// parsing runs through an ordered fallback chain; a malformed response
// never fails the call, only transport/provider errors do.
func (e *Engine) GenerateQuestions(ctx context.Context, documentText string) ([]string, error) {
	userPrompt := fmt.Sprintf("Based on this document, create 3 challenging comprehension questions:\n\n%s", documentText)
	raw, err := e.generator.GenerateText(ctx, challengeSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate challenge questions: %w", err)
	}
	return parseQuestions(raw), nil
}

// parseQuestions applies the fallback chain: structured JSON, an embedded
// JSON fragment, heuristic line extraction, then the fixed defaults.
func parseQuestions(raw string) []string {
	if questions, ok := parseStructured(raw); ok {
		return questions
	}
	if questions, ok := parseEmbeddedFragment(raw); ok {
		return questions
	}
	if questions, ok := parseHeuristicLines(raw); ok {
		return questions
	}
	return useDefaults()
}

// parseStructured decodes the whole response as a JSON object with a
// "questions" array.
func parseStructured(raw string) ([]string, bool) {
	var payload struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, false
	}
	return takeQuestions(payload.Questions)
}

// parseEmbeddedFragment scans for a braces-delimited fragment inside
// surrounding prose (models often wrap JSON in markdown fences or text)
// and decodes that.
func parseEmbeddedFragment(raw string) ([]string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	return parseStructured(raw[start : end+1])
}

// parseHeuristicLines extracts candidate question lines: lines containing
// a question mark or starting with a "1." style numeral prefix.
func parseHeuristicLines(raw string) ([]string, bool) {
	var candidates []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		numbered := stripNumeralPrefix(line)
		if strings.Contains(line, "?") || numbered != line {
			candidates = append(candidates, numbered)
		}
	}
	if len(candidates) < ChallengeQuestionCount {
		return nil, false
	}
	return takeQuestions(candidates)
}

func useDefaults() []string {
	out := make([]string, ChallengeQuestionCount)
	copy(out, defaultChallengeQuestions)
	return out
}

// takeQuestions keeps the first three non-empty entries.
func takeQuestions(raw []string) ([]string, bool) {
	out := make([]string, 0, ChallengeQuestionCount)
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == ChallengeQuestionCount {
			return out, true
		}
	}
	return nil, false
}

// stripNumeralPrefix removes a leading "1." / "2)" style list marker.
func stripNumeralPrefix(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] != '.' && line[i] != ')' {
		return line
	}
	return strings.TrimSpace(line[i+1:])
}

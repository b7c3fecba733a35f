package search

import (
	"fmt"
	"strings"
)

const noResultsAnswer = "No relevant notes found for your query."

var (
	lookupWords   = []string{"find", "search", "look", "show"}
	questionWords = []string{"what", "how", "why", "when"}
)

type retrieved struct {
	NoteID     string
	Text       string
	Similarity float64
}

// synthesizeAnswer writes a short rule-based summary of the retrieved chunks.
// No language model is involved.
func synthesizeAnswer(query string, docs []retrieved) string {
	if len(docs) == 0 {
		return noResultsAnswer
	}

	var total float64
	for _, d := range docs {
		total += d.Similarity
	}
	confidence := confidenceLabel(total / float64(len(docs)))

	q := strings.ToLower(query)
	var answer string
	switch {
	case containsAny(q, lookupWords):
		answer = fmt.Sprintf("I found %d relevant notes with %s confidence matching your search.", len(docs), confidence)
	case containsAny(q, questionWords):
		answer = fmt.Sprintf("Based on your notes, here's what I found: %d related entries with %s relevance.", len(docs), confidence)
	default:
		answer = fmt.Sprintf("Here are %d notes related to your query (confidence: %s).", len(docs), confidence)
	}

	if docs[0].Similarity > 0.3 {
		answer += fmt.Sprintf("\n\nMost relevant excerpt: \"%s...\"", truncateRunes(docs[0].Text, 150))
	}
	return answer
}

func confidenceLabel(avg float64) string {
	switch {
	case avg > 0.7:
		return "high"
	case avg > 0.5:
		return "moderate"
	default:
		return "low"
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// preview is the first 100 characters of a note, with an ellipsis when cut.
func preview(content string) string {
	if len([]rune(content)) <= 100 {
		return content
	}
	return truncateRunes(content, 100) + "..."
}

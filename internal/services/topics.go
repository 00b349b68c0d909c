package services

import (
	"strings"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
)

// ExtractTopics pulls 1-3 topic labels out of free synthesis text: split on
// sentence terminators, keep fragments longer than 10 characters, take the
// first three. When nothing qualifies, the first 50 characters of the text
// stand in as a single topic. A deterministic placeholder for real NLP
// extraction.
func ExtractTopics(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	fragments := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var topics []string
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if len(f) > cornellMinFragmentLen {
			topics = append(topics, f)
		}
		if len(topics) == cornellMaxTopics {
			break
		}
	}
	if len(topics) > 0 {
		return topics
	}

	return []string{domain.TruncateChars(trimmed, cornellFallbackLen)}
}

package embedding

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tokenizer of the OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// runesPerToken approximates token counts when no tokenizer is loaded.
const runesPerToken = 3

// Truncator cuts document text to the model context window before embedding.
type Truncator struct {
	encoding  *tiktoken.Tiktoken
	maxTokens int
}

// NewTruncator loads the tokenizer. maxTokens <= 0 disables truncation.
func NewTruncator(encoding string, maxTokens int) (*Truncator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Truncator{encoding: enc, maxTokens: maxTokens}, nil
}

// NewApproxTruncator truncates by an approximate rune budget.
// Used when the tokenizer files cannot be loaded.
func NewApproxTruncator(maxTokens int) *Truncator {
	return &Truncator{maxTokens: maxTokens}
}

// Truncate returns text cut to at most maxTokens tokens and whether it was cut.
func (t *Truncator) Truncate(text string) (string, bool) {
	if t == nil || t.maxTokens <= 0 {
		return text, false
	}
	if t.encoding == nil {
		runes := []rune(text)
		limit := t.maxTokens * runesPerToken
		if len(runes) <= limit {
			return text, false
		}
		return string(runes[:limit]), true
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= t.maxTokens {
		return text, false
	}
	return t.encoding.Decode(tokens[:t.maxTokens]), true
}

// CountTokens returns the token count of text (approximate without a tokenizer).
func (t *Truncator) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return (len([]rune(text)) + runesPerToken - 1) / runesPerToken
	}
	return len(t.encoding.Encode(text, nil, nil))
}

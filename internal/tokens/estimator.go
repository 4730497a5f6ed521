// Package tokens estimates token counts for submitted questions and
// answers. Counts feed query logging and usage reporting; they are
// estimates, not billing-grade accounting.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens in plain text using the cl100k encoding, which
// tracks closely enough across modern chat models for usage estimation.
type Estimator struct {
	mu    sync.Mutex
	codec tokenizer.Codec
}

// NewEstimator creates a token estimator.
func NewEstimator() (*Estimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	return &Estimator{codec: codec}, nil
}

// CountText returns the token count for a plain text string.
func (e *Estimator) CountText(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

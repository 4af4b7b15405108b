package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding matches the GPT-3.5/GPT-4 family
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// Tokenizer counts prompt tokens with a tiktoken encoding.
// It is safe for concurrent use.
type Tokenizer struct {
	name     string
	encoding *tiktoken.Tiktoken
}

// New loads the named encoding from the embedded BPE ranks, so no network
// access is needed at startup.
func New(encoding string) (*Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("unsupported tiktoken encoding %q: %w", encoding, err)
	}

	return &Tokenizer{name: encoding, encoding: enc}, nil
}

// Name returns the encoding name
func (t *Tokenizer) Name() string {
	return t.name
}

// Count returns the number of tokens in text
func (t *Tokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

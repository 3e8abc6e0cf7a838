package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEncoding is the tokenizer used for all token budgeting.
const TokenEncoding = "o200k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// Encoder returns the shared tiktoken encoder.
func Encoder() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(TokenEncoding)
	})
	return enc, encErr
}

// CountTokens returns the number of tokens in text.
func CountTokens(text string) (int, error) {
	e, err := Encoder()
	if err != nil {
		return 0, err
	}
	return len(e.Encode(text, nil, nil)), nil
}

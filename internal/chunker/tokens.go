package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
	// Truncate returns the longest prefix of text that fits into limit tokens.
	Truncate(text string, limit int) string
}

// TiktokenCounter counts tokens with the BPE encoding of a model.
type TiktokenCounter struct {
	mu       sync.Mutex
	encoding string
	tke      *tiktoken.Tiktoken
}

// NewTiktokenCounter resolves the encoding for model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	tke, err := tiktoken.EncodingForModel(model)
	encoding := model
	if err != nil {
		tke, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("get encoding %s: %w", defaultEncoding, err)
		}
		encoding = defaultEncoding
	}

	return &TiktokenCounter{encoding: encoding, tke: tke}, nil
}

func (c *TiktokenCounter) Encoding() string {
	return c.encoding
}

func (c *TiktokenCounter) Count(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.tke.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}

	c.mu.Lock()
	tokens := c.tke.Encode(text, nil, nil)
	if len(tokens) <= limit {
		c.mu.Unlock()
		return text
	}
	prefix := c.tke.Decode(tokens[:limit])
	c.mu.Unlock()

	// Decoded prefixes may end inside a multi-byte rune.
	prefix = trimToRuneBoundary(prefix)
	if !strings.HasPrefix(text, prefix) {
		return ""
	}

	return prefix
}

// WordCounter approximates tokens by whitespace separated words. It needs no
// encoding files, so it serves offline runs and tests.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func (WordCounter) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}

	words := 0
	inWord := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			words++
			if words > limit {
				return text[:i]
			}
		}
		inWord = !space
	}

	return text
}

package llmclient

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt size in tokens.
type TokenCounter interface {
	Count(text string) int
}

// CountTokens is a rough count: whitespace-delimited words, falling back to
// a character heuristic for text without spaces.
func CountTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text) / 4
	if chars > words {
		return chars
	}
	if words == 0 {
		return 1
	}
	return words
}

type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int { return CountTokens(text) }

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

var (
	counterOnce sync.Once
	counter     TokenCounter
)

// DefaultCounter uses the cl100k_base encoding and falls back to the
// heuristic when the encoding cannot be loaded (it is fetched on first use).
func DefaultCounter() TokenCounter {
	counterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			counter = heuristicCounter{}
			return
		}
		counter = tiktokenCounter{enc: enc}
	})
	return counter
}

// HeuristicCounter never touches the network.
func HeuristicCounter() TokenCounter { return heuristicCounter{} }

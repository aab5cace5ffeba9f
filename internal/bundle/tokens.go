package bundle

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hpungsan/bitcoach/internal/logging"
)

var (
	tkm     *tiktoken.Tiktoken
	tkmOnce sync.Once
)

func getTokenizer() *tiktoken.Tiktoken {
	tkmOnce.Do(func() {
		var err error
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logging.NewLogger("bundle").WithError(err).Warn("tiktoken encoding unavailable, using heuristic")
		}
	})
	return tkm
}

// EstimateTokens estimates the token count of text.
// It uses tiktoken if available, otherwise falls back to a 1:4 heuristic.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if tokenizer := getTokenizer(); tokenizer != nil {
		return len(tokenizer.Encode(text, nil, nil))
	}
	return HeuristicTokens(text)
}

// HeuristicTokens is the 1 token ~= 4 characters rule of thumb.
func HeuristicTokens(text string) int {
	return (len(text) + 3) / 4
}

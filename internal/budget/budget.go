// Package budget estimates prompt token counts and fits retrieved context
// into a model's input window. The chat backend is pluggable and tokenizers
// differ, so a conservative character heuristic is used: 1 token ≈ 4 bytes
// for English. Cyrillic text is two bytes per letter in UTF-8, which keeps
// the estimate on the safe side for Russian documents as well.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

// charsPerToken is the byte-to-token ratio used for estimation.
const charsPerToken = 4

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role and content with a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitChunks returns how many leading chunks fit in maxTokens alongside the
// fixed part of the prompt (instructions and question). Chunks are expected
// in ascending distance order, so the farthest are dropped first. At least
// one chunk is always kept when any are given; callers should warn when the
// result is smaller than len(chunks).
func FitChunks(fixed string, chunks []string, maxTokens int) int {
	if len(chunks) == 0 {
		return 0
	}
	if maxTokens <= 0 {
		return len(chunks)
	}

	used := Estimate(fixed)
	n := 0
	for _, c := range chunks {
		used += Estimate(c) + 1 // separator
		if used > maxTokens {
			break
		}
		n++
	}
	return max(n, 1)
}

// Package budget estimates prompt sizes for the recommendation composer and
// trims optional prompt sections to fit. Completion backends tokenize
// differently, so estimation uses a character heuristic of roughly four
// characters per token, which over-counts for most English prose.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead approximates the per-message framing tokens most chat
	// APIs add around role and content.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default prompt budget in tokens. It fits
	// within 8k-context models while leaving room for the completion.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs, summing
// role and content plus framing overhead per message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// EstimatePrompt estimates a system + user completion prompt as the chat
// messages it becomes on the wire.
func EstimatePrompt(system, user string) int {
	return EstimateMessages([]*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
}

// TrimOldest drops items from the front (oldest first) until fixedTokens plus
// the estimated size of the remaining items fits within maxTokens. It is used
// for prior questions, which are ordered oldest to newest.
//
// If even an empty list exceeds the budget the empty slice is returned;
// fixed content is never dropped here.
func TrimOldest(fixedTokens int, items []string, maxTokens int) []string {
	for len(items) > 0 && fixedTokens+estimateAll(items) > maxTokens {
		items = items[1:]
	}
	return items
}

// TrimTail drops items from the end until they fit. It is used for ranked
// sections (knowledge snippets), so the least relevant entries go first.
func TrimTail(fixedTokens int, items []string, maxTokens int) []string {
	for len(items) > 0 && fixedTokens+estimateAll(items) > maxTokens {
		items = items[:len(items)-1]
	}
	return items
}

func estimateAll(items []string) int {
	total := 0
	for _, s := range items {
		// one token for the separating newline
		total += Estimate(s) + 1
	}
	return total
}

package ai

import "github.com/cloudwego/eino/schema"

// estimateTokens approximates the provider's token accounting: roughly four
// characters per token plus per-message framing overhead.
func estimateTokens(messages []*schema.Message) int {
	total := 2
	for _, msg := range messages {
		total += 4 + len(msg.Content)/4
	}
	return total
}

// TrimHistory drops the oldest history entries until the prompt fits the
// token budget. The most recent minTurns entries are always kept without a
// budget check, so very long single messages never starve the context
// entirely.
func TrimHistory(system string, history []*schema.Message, maxTokens, minTurns int) []*schema.Message {
	systemMsg := schema.SystemMessage(system)
	for start := 0; start < len(history); start++ {
		candidate := history[start:]
		if len(candidate) <= minTurns {
			return candidate
		}
		withSystem := append([]*schema.Message{systemMsg}, candidate...)
		if estimateTokens(withSystem) <= maxTokens {
			return candidate
		}
	}
	return nil
}

package assistant

import (
	"bytes"
	"encoding/json"
	"math"
	"unicode/utf8"

	"nova-xfinity/internal/domain"
)

const (
	// MinMessageTokens is the floor of any single message estimate.
	MinMessageTokens  = 50
	toolContextTokens = 50
	fileTokens        = 200
	maxDataChars      = 5000
)

// EstimateText approximates the tokens of a text: one token per four
// characters plus 20% formatting overhead.
func EstimateText(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	base := int(math.Ceil(float64(n) / 4))
	overhead := int(math.Ceil(float64(base) * 0.2))
	return base + overhead
}

// EstimateTokens approximates the tokens a chat message costs. Every message
// counts for at least MinMessageTokens.
func EstimateTokens(msg domain.ChatMessage) int {
	tokens := 0
	c := msg.Content
	if !c.Structured {
		tokens += EstimateText(c.Text)
	} else {
		tokens += EstimateText(c.Summary)
		tokens += EstimateText(rawText(c.Result))
		tokens += EstimateText(rawText(c.Content))
		if present(c.Data) {
			tokens += EstimateText(truncate(compact(c.Data), maxDataChars))
		}
	}
	if msg.ToolContext != nil {
		tokens += toolContextTokens
	}
	if msg.Type == domain.MessageTypeFile {
		tokens += len(c.Files) * fileTokens
	}
	if tokens < MinMessageTokens {
		return MinMessageTokens
	}
	return tokens
}

// EstimateConversation sums EstimateTokens over messages.
func EstimateConversation(msgs []domain.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m)
	}
	return total
}

// rawText renders a JSON value as text: strings unquoted, empty values as "".
// Objects and arrays keep their JSON form.
func rawText(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	switch string(raw) {
	case "false", "0":
		return ""
	}
	return string(raw)
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}

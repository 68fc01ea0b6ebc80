package telegram

import "strings"

// MessageLimit is the maximum message length accepted by the Bot API, in runes.
const MessageLimit = 4096

// SplitMessage breaks text into parts no longer than MessageLimit.
func SplitMessage(text string) []string {
	return Chunk(text, MessageLimit)
}

// Chunk splits text into parts of at most limit runes, cutting after the last
// newline inside each window when there is one.
func Chunk(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for pos := 0; pos < len(runes); {
		cut := min(pos+limit, len(runes))
		if cut < len(runes) {
			if nl := lastNewline(runes[pos:cut]); nl > 0 {
				cut = pos + nl
			}
		}
		if part := strings.Trim(string(runes[pos:cut]), "\n"); part != "" {
			parts = append(parts, part)
		}
		pos = cut
		for pos < len(runes) && runes[pos] == '\n' {
			pos++
		}
	}
	return parts
}

// lastNewline returns the index just past the last '\n' in window, or -1.
func lastNewline(window []rune) int {
	for i := len(window); i > 0; i-- {
		if window[i-1] == '\n' {
			return i
		}
	}
	return -1
}

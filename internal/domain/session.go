package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

var ErrSessionNotFound = errors.New("assistant session not found")

// MessageTypeFile marks a chat message that carries uploaded files.
const MessageTypeFile = "file"

// ChatMessage is one message of an assistant conversation.
type ChatMessage struct {
	Role        string         `json:"role"`
	Type        string         `json:"type,omitempty"`
	Tool        string         `json:"tool,omitempty"`
	Content     MessageContent `json:"content"`
	ToolContext map[string]any `json:"toolContext,omitempty"`
}

// MessageContent is either plain text or a structured tool payload.
type MessageContent struct {
	Text       string
	Structured bool

	Summary string
	Result  json.RawMessage
	Content json.RawMessage
	Data    json.RawMessage
	Files   []json.RawMessage
}

type structuredContent struct {
	Summary string            `json:"summary,omitempty"`
	Result  json.RawMessage   `json:"result,omitempty"`
	Content json.RawMessage   `json:"content,omitempty"`
	Data    json.RawMessage   `json:"data,omitempty"`
	Files   []json.RawMessage `json:"files,omitempty"`
}

// TextContent builds plain text content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// UnmarshalJSON accepts a JSON string or an object.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = MessageContent{}
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = MessageContent{Text: text}
		return nil
	}
	var sc structuredContent
	if err := json.Unmarshal(trimmed, &sc); err != nil {
		return err
	}
	*c = MessageContent{
		Structured: true,
		Summary:    sc.Summary,
		Result:     sc.Result,
		Content:    sc.Content,
		Data:       sc.Data,
		Files:      sc.Files,
	}
	return nil
}

// MarshalJSON writes the same shape UnmarshalJSON reads.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if !c.Structured {
		return json.Marshal(c.Text)
	}
	return json.Marshal(structuredContent{
		Summary: c.Summary,
		Result:  c.Result,
		Content: c.Content,
		Data:    c.Data,
		Files:   c.Files,
	})
}

// SessionStore is a session-lifetime key-value store for assistant conversations.
type SessionStore interface {
	// AddTokens adds delta to the session total and returns the new total.
	AddTokens(ctx context.Context, sessionKey string, delta int) (int, error)
	// Tokens returns the running total, 0 for an unknown session.
	Tokens(ctx context.Context, sessionKey string) (int, error)
	AppendConversation(ctx context.Context, sessionKey string, messages []ChatMessage) error
	Conversation(ctx context.Context, sessionKey string) ([]ChatMessage, error)
	// Clear drops both the conversation and the token total.
	Clear(ctx context.Context, sessionKey string) error
}

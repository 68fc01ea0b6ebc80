package assistant

import (
	"encoding/json"
	"strings"
	"testing"

	"nova-xfinity/internal/domain"
)

func TestEstimateText(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 2},
		{strings.Repeat("a", 400), 120},
		{strings.Repeat("a", 1000), 300},
		{strings.Repeat("é", 8), 3},
	}
	for _, tc := range cases {
		if got := EstimateText(tc.text); got != tc.want {
			t.Errorf("EstimateText(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func structured(t *testing.T, raw string) domain.MessageContent {
	t.Helper()
	var c domain.MessageContent
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	return c
}

func TestEstimateTokens(t *testing.T) {
	longData := `{"summary":"` + strings.Repeat("s", 200) + `","result":"` + strings.Repeat("r", 200) +
		`","data":{"k":"` + strings.Repeat("x", 6000) + `"}}`

	cases := []struct {
		name string
		msg  domain.ChatMessage
		want int
	}{
		{"empty message hits the floor", domain.ChatMessage{Role: "user"}, 50},
		{"short text hits the floor", domain.ChatMessage{Content: domain.TextContent("hello world")}, 50},
		{"plain text", domain.ChatMessage{Content: domain.TextContent(strings.Repeat("a", 400))}, 120},
		{
			"structured with truncated data and tool context",
			domain.ChatMessage{
				Content:     structured(t, longData),
				ToolContext: map[string]any{"id": "deep-research"},
			},
			60 + 60 + 1500 + 50,
		},
		{
			"numeric result is stringified",
			domain.ChatMessage{Content: structured(t, `{"summary":"`+strings.Repeat("a", 400)+`","result":12345}`)},
			120 + 3,
		},
		{
			"empty tool context still counts",
			domain.ChatMessage{Content: domain.TextContent(strings.Repeat("a", 400)), ToolContext: map[string]any{}},
			170,
		},
		{
			"files only count for file messages",
			domain.ChatMessage{Type: domain.MessageTypeFile, Content: structured(t, `{"files":[{"name":"a.pdf"},{"name":"b.png"}]}`)},
			400,
		},
		{
			"files ignored on other types",
			domain.ChatMessage{Type: "text", Content: structured(t, `{"files":[{"name":"a.pdf"}]}`)},
			50,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateTokens(tc.msg); got != tc.want {
				t.Fatalf("EstimateTokens = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEstimateConversation(t *testing.T) {
	msgs := []domain.ChatMessage{
		{Content: domain.TextContent("hi")},
		{Content: domain.TextContent(strings.Repeat("a", 400))},
	}
	if got := EstimateConversation(msgs); got != 170 {
		t.Fatalf("EstimateConversation = %d, want 170", got)
	}
	if got := EstimateConversation(nil); got != 0 {
		t.Fatalf("EstimateConversation(nil) = %d, want 0", got)
	}
}

func TestRouteFor(t *testing.T) {
	cases := map[string]string{
		"deep-research": "/api/tools/deep-research",
		"web-search":    "/api/research/query",
		"canvas":        "/api/tools/canvas",
		"unknown":       DefaultRoute,
		"":              DefaultRoute,
	}
	for tool, want := range cases {
		if got := RouteFor(tool); got != want {
			t.Errorf("RouteFor(%q) = %q, want %q", tool, got, want)
		}
	}
}

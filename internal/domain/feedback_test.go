package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateRating(t *testing.T) {
	for _, rating := range []int{-1, 1, 2, 3, 4, 5} {
		if err := ValidateRating(rating); err != nil {
			t.Fatalf("rating %d rejected: %v", rating, err)
		}
	}
	for _, rating := range []int{-2, 0, 6, 10} {
		err := ValidateRating(rating)
		if !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if ct, err := ParseContentType(" seo_analysis "); err != nil || ct != ContentSEOAnalysis {
		t.Fatalf("ParseContentType = %q, %v", ct, err)
	}
	if _, err := ParseContentType("PODCAST"); !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("expected ErrInvalidContentType, got %v", err)
	}
	if p, err := ParseProvider("gemini"); err != nil || p != ProviderGemini {
		t.Fatalf("ParseProvider = %q, %v", p, err)
	}
	_, err := ParseProvider("MISTRAL")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Message != "Invalid provider. Must be one of: GEMINI, OPENAI, ANTHROPIC, LLAMA" {
		t.Fatalf("unexpected message %q", verr.Message)
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel(ProviderAnthropic); got != "claude-3-5-sonnet-latest" {
		t.Fatalf("anthropic default = %s", got)
	}
	if got := DefaultModel(Provider("MISTRAL")); got != "gemini-3-pro-preview" {
		t.Fatalf("unknown provider default = %s", got)
	}
}

func TestMessageContentJSON(t *testing.T) {
	var msg ChatMessage
	if err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &msg); err != nil {
		t.Fatalf("unmarshal text: %v", err)
	}
	if msg.Content.Structured || msg.Content.Text != "hello" {
		t.Fatalf("unexpected text content: %+v", msg.Content)
	}

	raw := `{"role":"assistant","type":"file","content":{"summary":"s","data":{"k":1},"files":[{"name":"a.pdf"}]}}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal structured: %v", err)
	}
	if !msg.Content.Structured || msg.Content.Summary != "s" || len(msg.Content.Files) != 1 {
		t.Fatalf("unexpected structured content: %+v", msg.Content)
	}
	out, err := json.Marshal(msg.Content)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"summary":"s","data":{"k":1},"files":[{"name":"a.pdf"}]}` {
		t.Fatalf("unexpected marshal output %s", out)
	}
}

func TestSettingsView(t *testing.T) {
	s := Settings{Provider: ProviderOpenAI, APIKeys: map[Provider]string{ProviderOpenAI: "sk-1234567890"}}
	view := s.View()
	if !view.Keys[ProviderOpenAI].Configured || view.Keys[ProviderOpenAI].Masked != "********7890" {
		t.Fatalf("unexpected openai key state %+v", view.Keys[ProviderOpenAI])
	}
	if view.Keys[ProviderLlama].Configured {
		t.Fatal("llama key must not be configured")
	}
}

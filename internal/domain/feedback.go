package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ContentType identifies what kind of generated content a feedback record rates.
type ContentType string

const (
	ContentArticle         ContentType = "ARTICLE"
	ContentArticleSection  ContentType = "ARTICLE_SECTION"
	ContentArticleMetadata ContentType = "ARTICLE_METADATA"
	ContentArticleCTA      ContentType = "ARTICLE_CTA"
	ContentImage           ContentType = "IMAGE"
	ContentVideo           ContentType = "VIDEO"
	ContentAudio           ContentType = "AUDIO"
	ContentResearch        ContentType = "RESEARCH"
	ContentSEOAnalysis     ContentType = "SEO_ANALYSIS"
)

// ContentTypes lists every accepted content type in display order.
var ContentTypes = []ContentType{
	ContentArticle,
	ContentArticleSection,
	ContentArticleMetadata,
	ContentArticleCTA,
	ContentImage,
	ContentVideo,
	ContentAudio,
	ContentResearch,
	ContentSEOAnalysis,
}

// Provider is an upstream AI vendor.
type Provider string

const (
	ProviderGemini    Provider = "GEMINI"
	ProviderOpenAI    Provider = "OPENAI"
	ProviderAnthropic Provider = "ANTHROPIC"
	ProviderLlama     Provider = "LLAMA"
)

// Providers lists every accepted provider in display order.
var Providers = []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderLlama}

var (
	ErrInvalidRating      = errors.New("invalid rating")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidProvider    = errors.New("invalid provider")
	ErrFeedbackUserEmpty  = errors.New("feedback user is empty")
)

// ValidationError is returned when user input is rejected before persistence.
// It unwraps to one of the sentinel errors above.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// ParseContentType normalizes and validates a content type.
func ParseContentType(raw string) (ContentType, error) {
	ct := ContentType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range ContentTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", &ValidationError{
		Err:     ErrInvalidContentType,
		Message: fmt.Sprintf("Invalid contentType. Must be one of: %s", joinValues(ContentTypes)),
	}
}

// ParseProvider normalizes and validates a provider name. Lower-case names are accepted.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", &ValidationError{
		Err:     ErrInvalidProvider,
		Message: fmt.Sprintf("Invalid provider. Must be one of: %s", joinValues(Providers)),
	}
}

// ValidateRating accepts thumbs ratings (-1, 1) and stars (1..5).
func ValidateRating(rating int) error {
	if rating < -1 || rating > 5 || rating == 0 {
		return &ValidationError{
			Err:     ErrInvalidRating,
			Message: "Rating must be -1 (thumbs down), 1 (thumbs up), or 1-5 (stars)",
		}
	}
	return nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Feedback is a single rating left by a user on a generated piece of content.
// Records are immutable once stored.
type Feedback struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	ContentType ContentType    `json:"contentType"`
	Provider    Provider       `json:"provider"`
	Model       string         `json:"model,omitempty"`
	Rating      int            `json:"rating"`
	Comment     string         `json:"comment,omitempty"`
	ContentID   string         `json:"contentId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// FeedbackInput is the raw submission payload.
type FeedbackInput struct {
	ContentType string         `json:"contentType"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model,omitempty"`
	Rating      int            `json:"rating"`
	Comment     string         `json:"comment,omitempty"`
	ContentID   string         `json:"contentId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// FeedbackFilter narrows the record set read for statistics. Zero values mean "any".
type FeedbackFilter struct {
	UserID      string
	ContentType ContentType
	Since       time.Time
}

// FeedbackPage is one page of a user's feedback history.
type FeedbackPage struct {
	Feedback   []Feedback `json:"feedback"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the window returned in a FeedbackPage.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// FeedbackRepo stores feedback records.
type FeedbackRepo interface {
	CreateFeedback(ctx context.Context, fb Feedback) (Feedback, error)
	ListFeedback(ctx context.Context, filter FeedbackFilter) ([]Feedback, error)
	// ListUserFeedback returns records newest first together with the user's total count.
	ListUserFeedback(ctx context.Context, userID string, limit, offset int) ([]Feedback, int, error)
}

package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
)

// Update is a partial change of Settings. Nil fields are left as they are;
// an empty API key removes it.
type Update struct {
	Provider       *string           `json:"provider,omitempty"`
	FocusKeyphrase *string           `json:"focusKeyphrase,omitempty"`
	APIKeys        map[string]string `json:"apiKeys,omitempty"`
}

// Service owns the platform settings. It loads them once and saves on every change.
type Service struct {
	store domain.SettingsStore
	log   zerolog.Logger

	mu      sync.RWMutex
	current domain.Settings
}

// NewService loads the stored settings. keys seeds the in-memory API keys.
func NewService(ctx context.Context, store domain.SettingsStore, keys map[domain.Provider]string, logger zerolog.Logger) (*Service, error) {
	current, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	current.APIKeys = make(map[domain.Provider]string, len(keys))
	for p, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			current.APIKeys[p] = k
		}
	}
	return &Service{store: store, log: logger, current: current}, nil
}

// Get returns the masked view of the current settings.
func (s *Service) Get() domain.SettingsView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.View()
}

// Provider returns the configured default provider.
func (s *Service) Provider() domain.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Provider
}

// APIKey returns the raw key of a provider, if configured.
func (s *Service) APIKey(p domain.Provider) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.current.APIKeys[p]
	return k, ok
}

// Apply validates and stores an update.
func (s *Service) Apply(ctx context.Context, u Update) (domain.SettingsView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	next.APIKeys = make(map[domain.Provider]string, len(s.current.APIKeys))
	for p, k := range s.current.APIKeys {
		next.APIKeys[p] = k
	}

	if u.Provider != nil {
		p, err := domain.ParseProvider(*u.Provider)
		if err != nil {
			return domain.SettingsView{}, err
		}
		next.Provider = p
	}
	if u.FocusKeyphrase != nil {
		next.FocusKeyphrase = strings.TrimSpace(*u.FocusKeyphrase)
	}
	for raw, key := range u.APIKeys {
		p, err := domain.ParseProvider(raw)
		if err != nil {
			return domain.SettingsView{}, err
		}
		if key = strings.TrimSpace(key); key == "" {
			delete(next.APIKeys, p)
			continue
		}
		next.APIKeys[p] = key
	}

	if err := s.store.Save(ctx, next); err != nil {
		return domain.SettingsView{}, fmt.Errorf("save settings: %w", err)
	}
	s.current = next
	s.log.Info().Str("provider", string(next.Provider)).Msg("settings: updated")
	return next.View(), nil
}

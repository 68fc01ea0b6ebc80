package domain

import (
	"context"
	"strings"
)

// Settings are the platform-wide generation defaults edited by admins.
// API keys live only in memory and are never written to the settings file.
type Settings struct {
	Provider       Provider            `yaml:"provider" json:"provider"`
	FocusKeyphrase string              `yaml:"focusKeyphrase" json:"focusKeyphrase"`
	APIKeys        map[Provider]string `yaml:"-" json:"-"`
}

// DefaultSettings returns the settings used before anything was saved.
func DefaultSettings() Settings {
	return Settings{Provider: DefaultProvider}
}

// KeyState tells whether a provider key is configured without exposing it.
type KeyState struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
}

// SettingsView is what the API returns for Settings.
type SettingsView struct {
	Provider       Provider              `json:"provider"`
	FocusKeyphrase string                `json:"focusKeyphrase"`
	Keys           map[Provider]KeyState `json:"keys"`
}

// View masks every API key.
func (s Settings) View() SettingsView {
	keys := make(map[Provider]KeyState, len(Providers))
	for _, p := range Providers {
		key := s.APIKeys[p]
		keys[p] = KeyState{Configured: key != "", Masked: MaskKey(key)}
	}
	return SettingsView{Provider: s.Provider, FocusKeyphrase: s.FocusKeyphrase, Keys: keys}
}

// MaskKey keeps the last four characters of a secret.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

// SettingsStore persists Settings between restarts.
type SettingsStore interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

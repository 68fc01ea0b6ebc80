package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nova-xfinity/internal/domain"
)

func TestFileStoreDefaults(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.yaml"))
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

func TestFileStoreRoundTripSkipsKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	store := NewFileStore(path)

	in := domain.Settings{
		Provider:       domain.ProviderAnthropic,
		FocusKeyphrase: "solar panels",
		APIKeys:        map[domain.Provider]string{domain.ProviderOpenAI: "sk-secret-1234"},
	}
	require.NoError(t, store.Save(ctx, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "sk-secret"), "api key leaked into %q", raw)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAnthropic, got.Provider)
	assert.Equal(t, "solar panels", got.FocusKeyphrase)
	assert.Empty(t, got.APIKeys)
}

func TestFileStoreBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [oops"), 0o600))
	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/royalcat/listingmap/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Markers.PageSize)
	assert.Equal(t, 800*time.Millisecond, cfg.Markers.Debounce)
	assert.Equal(t, 0.2, cfg.Markers.Extension)
	assert.Equal(t, 0.05, cfg.Markers.PanThreshold)
	assert.Equal(t, 6, cfg.Cards.PageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Cards.Debounce)
	assert.Equal(t, 0.25, cfg.Cards.PanThreshold)
	assert.Equal(t, 0.10, cfg.ZoomThreshold)
	assert.Equal(t, 10, cfg.Cache.Size)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Expiry)
	assert.False(t, cfg.Session.StaleGuard)
	assert.Equal(t, "residential_projects_viewport", cfg.API.MarkersResource)
	assert.Empty(t, cfg.Markers.Category, "each kind labels markers with its own default")
}

func TestResources(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	markers, cards := cfg.API.Resources(listing.KindResidential)
	assert.Equal(t, "residential_projects_viewport", markers)
	assert.Equal(t, "residential_projects_viewport", cards)

	markers, cards = cfg.API.Resources(listing.KindCommercial)
	assert.Equal(t, "commercial_projects_viewport", markers)
	assert.Equal(t, "commercial_projects_viewport", cards)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("LISTINGMAP_API_BASE_URL", "http://localhost:9000")
	t.Setenv("LISTINGMAP_MARKERS_DEBOUNCE", "1s")
	t.Setenv("LISTINGMAP_SESSION_STALE_GUARD", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.API.BaseURL)
	assert.Equal(t, time.Second, cfg.Markers.Debounce)
	assert.True(t, cfg.Session.StaleGuard)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	err := os.WriteFile(path, []byte(`
api:
  base_url: https://listings.example.com
cache:
  size: 3
  expiry: 30s
server:
  listen: 127.0.0.1:9999
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://listings.example.com", cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.Cache.Size)
	assert.Equal(t, 30*time.Second, cfg.Cache.Expiry)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
	assert.Equal(t, 6, cfg.Cards.PageSize, "unset keys keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.API.BaseURL = "not a url"
	cfg.Cache.Size = 0
	cfg.Markers.Extension = -1

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
	assert.Contains(t, err.Error(), "cache.size")
	assert.Contains(t, err.Error(), "markers.extension")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "./data/b3s-chat.db", cfg.Database.Path)
	assert.Equal(t, "http://localhost:11434", cfg.Upstream.BaseURL)
	assert.Equal(t, "/api/chat", cfg.Upstream.ChatPath)

	require.NotEmpty(t, cfg.Models)
	assert.Equal(t, cfg.Models[0].ID, cfg.Chat.DefaultModel)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: 9999
history:
  enabled: false
upstream:
  base_url: http://inference:8000
chat:
  default_model: custom-model
models:
  - id: custom-model
    display_name: Custom
    provider: ollama
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "http://inference:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, "custom-model", cfg.Chat.DefaultModel)
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "ollama", cfg.Models[0].Provider)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

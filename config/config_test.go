package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setPaths points every directory the config creates into a temp dir.
func setPaths(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("TEMP_DIR", filepath.Join(dir, "tmp"))
	t.Setenv("DB_PATH", filepath.Join(dir, "db", "requests.db"))
	t.Setenv("ENV", "development")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := setPaths(t)

	cfg, err := Load(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.RequestTimeout)
	assert.Greater(t, cfg.WriteTimeout, cfg.RequestTimeout)
	assert.Equal(t, []string{"en", "en-US"}, cfg.Captions.DefaultLanguages)
	assert.Equal(t, CaptionAPIListing, cfg.Captions.API)
	assert.Equal(t, 20*time.Second, cfg.Captions.Timeout)
	assert.Equal(t, BackendFasterWhisper, cfg.Model.Backend)
	assert.Equal(t, "small", cfg.Model.Name)
	assert.Equal(t, "cpu", cfg.Model.Device)
	assert.Equal(t, "int8", cfg.Model.ComputeType)
	assert.Equal(t, 5, cfg.Model.BeamSize)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 10*time.Minute, cfg.Download.Timeout)
	assert.Empty(t, cfg.Download.CookieFile)
	assert.False(t, cfg.Archive.Enabled())
	assert.False(t, cfg.Middleware.EnableRateLimit)

	for _, p := range []string{"logs", "tmp", "db"} {
		info, err := os.Stat(filepath.Join(dir, p))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoadOverrides(t *testing.T) {
	setPaths(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("READ_TIMEOUT", "10s")
	t.Setenv("DEFAULT_LANGUAGES", "de, fr ,")
	t.Setenv("CAPTION_API", "flat")
	t.Setenv("MODEL_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("COOKIE_FILE", "/secrets/cookies.txt")
	t.Setenv("ARCHIVE_BUCKET", "transcripts")
	t.Setenv("ENV", "production")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"de", "fr"}, cfg.Captions.DefaultLanguages)
	assert.Equal(t, CaptionAPIFlat, cfg.Captions.API)
	assert.Equal(t, BackendOpenAI, cfg.Model.Backend)
	assert.Equal(t, "/secrets/cookies.txt", cfg.Download.CookieFile)
	assert.True(t, cfg.Archive.Enabled())
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Middleware.EnableRateLimit)
}

func TestLoadDotEnv(t *testing.T) {
	dir := setPaths(t)
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("WHISPER_MODEL=tiny\nBEAM_SIZE=2\n"), 0o644))
	t.Setenv("BEAM_SIZE", "3")
	t.Cleanup(func() { os.Unsetenv("WHISPER_MODEL") })

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "tiny", cfg.Model.Name)
	// The process environment wins over the file.
	assert.Equal(t, 3, cfg.Model.BeamSize)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"MODEL_BACKEND": "carrier-pigeon"}},
		{"openai without key", map[string]string{"MODEL_BACKEND": "openai", "OPENAI_API_KEY": ""}},
		{"unknown caption api", map[string]string{"CAPTION_API": "scrape"}},
		{"zero caption timeout", map[string]string{"CAPTION_TIMEOUT": "0s"}},
		{"bad duration", map[string]string{"READ_TIMEOUT": "soon"}},
		{"no languages", map[string]string{"DEFAULT_LANGUAGES": " , "}},
		{"zero beam", map[string]string{"BEAM_SIZE": "0"}},
		{"write timeout below request timeout", map[string]string{"WRITE_TIMEOUT": "15m", "REQUEST_TIMEOUT": "30m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setPaths(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "none.env"))
			assert.Error(t, err)
		})
	}
}

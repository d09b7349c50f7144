package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nijaru/yt-transcript/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	adapter := &fakeAdapter{info: &models.ModelInfo{Backend: "faster-whisper", ModelSize: "small", Device: "cpu"}}
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter))

	rr := doJSON(t, h, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, "1.0 MiB", body["max_upload"])
	assert.Equal(t, "listing", body["caption_api"])
	assert.Contains(t, body["supported_formats"], ".mp3")
	assert.NotContains(t, body, "model_error")

	model := body["model"].(map[string]interface{})
	assert.Equal(t, "small", model["model_size"])
	assert.Equal(t, 12.0, model["estimated_seconds_per_audio_minute"])
}

func TestHealthWithoutModel(t *testing.T) {
	adapter := &fakeAdapter{notReady: "CUDA driver missing"}
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter))

	rr := doJSON(t, h, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rr.Code, "health stays up without a model")
	body := decode(t, rr)
	assert.Equal(t, false, body["model_loaded"])
	assert.Equal(t, "CUDA driver missing", body["model_error"])
	assert.Nil(t, body["model"])
}

func TestSupportedLanguagesEndpoint(t *testing.T) {
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, &fakeAdapter{}))

	rr := doJSON(t, h, http.MethodGet, "/supported-languages", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	langs := decode(t, rr)["languages"].(map[string]interface{})
	assert.Equal(t, "Auto-detect", langs["auto"])
	assert.Equal(t, "English", langs["en"])
	assert.Equal(t, "Spanish", langs["es"])
}

func TestIndex(t *testing.T) {
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, &fakeAdapter{}))

	rr := doJSON(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "yt-transcript", body["service"])
	assert.Len(t, body["endpoints"], len(endpoints))

	rr = doJSON(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecentRequests(t *testing.T) {
	repo := &memRepo{}
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, repo.Save(ctx, &models.RequestRecord{ID: id, Source: models.SourceCaption, Input: "x", CreatedAt: time.Now()}))
	}
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, &fakeAdapter{}), WithRequestLog(repo))

	rr := doJSON(t, h, http.MethodGet, "/api/v1/requests?limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, float64(2), body["count"])
	first := body["requests"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "b", first["id"])
	assert.Equal(t, 5, repo.limit)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/requests?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecentRequestsDisabled(t *testing.T) {
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, &fakeAdapter{}))

	rr := doJSON(t, h, http.MethodGet, "/api/v1/requests", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Request log is disabled", decode(t, rr)["error"])
}

func TestRateLimitedServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Middleware.EnableRateLimit = true
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMinute = 1
	cfg.RateLimit.BurstSize = 1
	h := newTestServer(t, cfg, WithServices(&fakeResolver{}, &fakeAdapter{}))

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, h, http.MethodGet, "/health", nil).Code)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/nijaru/yt-transcript/config"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/services/transcript"
	"github.com/nijaru/yt-transcript/youtube"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	result   models.TranscriptResult
	calls    int
	gotRef   models.VideoRef
	gotLangs []string
}

func (f *fakeResolver) Resolve(ctx context.Context, ref models.VideoRef, preferred []string) models.TranscriptResult {
	f.calls++
	f.gotRef = ref
	f.gotLangs = preferred
	return f.result
}

func (f *fakeResolver) Capability() transcript.Capability { return transcript.CapabilityListing }

type fakeMetadata struct {
	meta *youtube.VideoMetadata
	err  error
}

func (f *fakeMetadata) Lookup(ctx context.Context, videoID string) (*youtube.VideoMetadata, error) {
	return f.meta, f.err
}

type fakeAdapter struct {
	result   models.TranscriptResult
	notReady string
	info     *models.ModelInfo

	calls     int
	audio     []byte
	filename  string
	hint      string
	wantWords bool
	path      string
	fileSeen  bool
}

func (f *fakeAdapter) Transcribe(ctx context.Context, audio []byte, filename, languageHint string, wantWords bool) models.TranscriptResult {
	f.calls++
	f.audio, f.filename, f.hint, f.wantWords = audio, filename, languageHint, wantWords
	return f.result
}

func (f *fakeAdapter) TranscribeFile(ctx context.Context, path, languageHint string, wantWords bool) models.TranscriptResult {
	f.calls++
	f.path, f.hint, f.wantWords = path, languageHint, wantWords
	f.fileSeen = fileExists(path)
	return f.result
}

func (f *fakeAdapter) Ready() bool { return f.notReady == "" }

func (f *fakeAdapter) ModelError() string { return f.notReady }

func (f *fakeAdapter) ModelInfo() *models.ModelInfo {
	if f.notReady != "" {
		return nil
	}
	return f.info
}

type memRepo struct {
	mu      sync.Mutex
	records []*models.RequestRecord
	saveErr error
	limit   int
}

func (m *memRepo) Save(ctx context.Context, rec *models.RequestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memRepo) Recent(ctx context.Context, limit int) ([]*models.RequestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	out := make([]*models.RequestRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

type fakeArchive struct {
	keys []string
}

func (f *fakeArchive) Save(ctx context.Context, id string, rec *models.RequestRecord, result models.TranscriptResult) error {
	f.keys = append(f.keys, id)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ServerPort:     "0",
		TempDir:        t.TempDir(),
		MaxUploadBytes: 1 << 20,
		Version:        "test",
		Middleware: config.MiddlewareConfig{
			EnableRecover:   true,
			EnableRequestID: true,
			EnableLogger:    true,
		},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...ServerOption) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	opts = append([]ServerOption{WithLogger(quietLogger())}, opts...)
	return NewServer(cfg, opts...).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doRaw(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func captionResult(text string) models.TranscriptResult {
	r := transcript.Normalize([]models.TranscriptSegment{{Text: text, Start: 0, End: 2}}, "en", nil)
	generated := false
	r.IsGenerated = &generated
	r.Strategy = transcript.StrategyManual
	return r
}

func failed(kind errors.Kind, msg string) models.TranscriptResult {
	return models.Failed(kind, msg)
}

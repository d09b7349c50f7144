package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putRecorder struct {
	mu     sync.Mutex
	paths  []string
	bodies [][]byte
}

func (p *putRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Method == http.MethodPut {
		p.paths = append(p.paths, r.URL.Path)
		p.bodies = append(p.bodies, body)
	}
	w.Header().Set("ETag", `"abc"`)
	w.WriteHeader(http.StatusOK)
}

func newTestArchive(t *testing.T, h http.Handler) *Archive {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	a, err := NewArchive(context.Background(), ArchiveConfig{
		AccessKey: "key",
		SecretKey: "secret",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		Bucket:    "bucket",
	})
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a
}

func TestArchiveSave(t *testing.T) {
	rec := &putRecorder{}
	a := newTestArchive(t, rec)

	result := models.Succeeded("hello world")
	result.Segments = []models.TranscriptSegment{{Text: "hello world", Start: 0, End: 1.5}}
	result.Strategy = "manual_caption"
	record := &models.RequestRecord{
		Source:   models.SourceCaption,
		Input:    "https://youtu.be/abc",
		VideoID:  "abc",
		Language: "en",
	}

	require.NoError(t, a.Save(context.Background(), "abc", record, result))

	require.Len(t, rec.paths, 1)
	assert.Equal(t, "/bucket/transcripts/abc.json", rec.paths[0])

	var doc ArchivedTranscript
	require.NoError(t, json.Unmarshal(rec.bodies[0], &doc))
	assert.Equal(t, "transcripts/abc.json", doc.Key)
	assert.Equal(t, "hello world", doc.Text)
	assert.Equal(t, "abc", doc.VideoID)
	assert.Equal(t, "manual_caption", doc.Strategy)
	assert.Equal(t, 2024, doc.ArchivedAt.Year())
}

func TestArchiveSkipsFailures(t *testing.T) {
	rec := &putRecorder{}
	a := newTestArchive(t, rec)

	result := models.Failed(errors.KindNoTranscriptAvailable, "No transcript available for this video")
	require.NoError(t, a.Save(context.Background(), "abc", &models.RequestRecord{}, result))
	assert.Empty(t, rec.paths)
}

func TestArchiveUploadError(t *testing.T) {
	a := newTestArchive(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))

	result := models.Succeeded("x")
	err := a.Save(context.Background(), "upload-1", &models.RequestRecord{}, result)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "transcripts/upload-1.json"))
}

func TestNewArchiveRequiresBucket(t *testing.T) {
	_, err := NewArchive(context.Background(), ArchiveConfig{})
	assert.Error(t, err)
}

package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/services/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	err   error
	calls int
	dir   string
	url   string
}

func (f *fakeDownloader) Download(ctx context.Context, url, dir string) (string, error) {
	f.calls++
	f.dir, f.url = dir, url
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(dir, "dQw4w9WgXcQ.mp3")
	return path, os.WriteFile(path, []byte("ID3"), 0o644)
}

func audioResult() models.TranscriptResult {
	prob := 0.9871
	r := transcript.Normalize([]models.TranscriptSegment{
		{Text: "Hello", Start: 0, End: 1.2, Words: []models.WordTiming{{Word: "Hello", Probability: 0.9}}},
		{Text: "world", Start: 1.2, End: 2, Words: []models.WordTiming{{Word: "world", Probability: 0.8}}},
	}, "en", &prob)
	duration := 2.0
	r.Duration = &duration
	r.ModelInfo = &models.ModelInfo{Backend: "fake", ModelSize: "small"}
	return r
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTranscribeUpload(t *testing.T) {
	adapter := &fakeAdapter{result: audioResult()}
	repo := &memRepo{}
	archive := &fakeArchive{}
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter), WithRequestLog(repo), WithArchive(archive))

	rr := serve(h, multipartRequest(t, map[string]string{"language": "en"}, "talk.mp3", []byte("ID3 audio")))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Hello world", body["transcript"])
	assert.Equal(t, "en", body["language"])
	assert.Equal(t, 0.987, body["language_probability"])
	assert.Equal(t, 2.0, body["duration"])
	assert.Equal(t, float64(2), body["word_count"])
	assert.Equal(t, float64(11), body["character_count"])
	assert.Equal(t, float64(2), body["segment_count"])
	assert.Equal(t, 0.85, body["average_confidence"])
	assert.Len(t, body["segments"], 2)
	assert.Equal(t, "small", body["model_info"].(map[string]interface{})["model_size"])

	assert.Equal(t, "talk.mp3", adapter.filename)
	assert.Equal(t, []byte("ID3 audio"), adapter.audio)
	assert.Equal(t, "en", adapter.hint)
	assert.True(t, adapter.wantWords, "word timestamps default to on")

	require.Len(t, repo.records, 1)
	assert.Equal(t, models.SourceUpload, repo.records[0].Source)
	assert.Equal(t, "talk.mp3", repo.records[0].Input)
	require.Len(t, archive.keys, 1)
	assert.Equal(t, "upload-"+repo.records[0].ID, archive.keys[0])
}

func TestTranscribeUploadOptions(t *testing.T) {
	adapter := &fakeAdapter{result: audioResult()}
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter))

	rr := serve(h, multipartRequest(t, map[string]string{
		"language":                "auto",
		"include_word_timestamps": "false",
	}, "clip.wav", []byte("RIFF")))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "auto", adapter.hint)
	assert.False(t, adapter.wantWords)
}

func TestTranscribeUploadRejected(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		want     int
	}{
		{"missing file", map[string]string{"language": "en"}, "", http.StatusUnprocessableEntity},
		{"bad word flag", map[string]string{"include_word_timestamps": "sometimes"}, "a.mp3", http.StatusBadRequest},
		{"bad language", map[string]string{"language": "english please"}, "a.mp3", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &fakeAdapter{result: audioResult()}
			h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter))

			rr := serve(h, multipartRequest(t, tt.fields, tt.filename, []byte("x")))

			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			body := decode(t, rr)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			assert.Zero(t, adapter.calls)
		})
	}
}

func TestTranscribeNotMultipart(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter))

	rr := doRaw(t, h, http.MethodPost, "/transcribe", "application/json", `{"file":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Zero(t, adapter.calls)
}

func TestTranscribeTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxUploadBytes = 256
	adapter := &fakeAdapter{}
	h := newTestServer(t, cfg, WithServices(&fakeResolver{}, adapter))

	rr := serve(h, multipartRequest(t, nil, "big.mp3", bytes.Repeat([]byte("a"), 1024)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	body := decode(t, rr)
	assert.Contains(t, body["error"], "256 B")
	assert.Zero(t, adapter.calls)
}

func TestTranscribeFailureStatus(t *testing.T) {
	tests := []struct {
		kind errors.Kind
		want int
	}{
		{errors.KindUnsupportedFormat, http.StatusBadRequest},
		{errors.KindTranscriptionFailure, http.StatusInternalServerError},
		{errors.KindModelUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			adapter := &fakeAdapter{result: failed(tt.kind, "bad things")}
			h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter))

			rr := serve(h, multipartRequest(t, nil, "notes.txt", []byte("x")))

			assert.Equal(t, tt.want, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, "bad things", body["error"])
			assert.Equal(t, string(tt.kind), body["error_kind"])
			assert.Nil(t, body["transcript"])
			assert.Nil(t, body["word_count"])
		})
	}
}

func TestTranscribeURL(t *testing.T) {
	adapter := &fakeAdapter{result: audioResult()}
	downloader := &fakeDownloader{}
	repo := &memRepo{}
	cfg := testConfig(t)
	h := newTestServer(t, cfg, WithServices(&fakeResolver{}, adapter), WithDownloader(downloader), WithRequestLog(repo))

	noWords := false
	rr := doJSON(t, h, http.MethodPost, "/transcribe-url", models.TranscribeURLRequest{
		URL:                   watchURL,
		Language:              "en",
		IncludeWordTimestamps: &noWords,
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Hello world", decode(t, rr)["transcript"])

	assert.Equal(t, watchURL, downloader.url)
	assert.Equal(t, cfg.TempDir, filepath.Dir(downloader.dir))
	assert.Equal(t, filepath.Join(downloader.dir, "dQw4w9WgXcQ.mp3"), adapter.path)
	assert.True(t, adapter.fileSeen)
	assert.False(t, adapter.wantWords)
	assert.False(t, fileExists(downloader.dir), "download directory must be removed")

	require.Len(t, repo.records, 1)
	assert.Equal(t, models.SourceDownload, repo.records[0].Source)
	assert.Equal(t, "dQw4w9WgXcQ", repo.records[0].VideoID)
}

func TestTranscribeURLFailures(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		notReady    string
		downloadErr error
		wantStatus  int
		wantKind    errors.Kind
		wantCalls   int
	}{
		{
			name:       "not a video url",
			url:        "https://example.com/clip",
			wantStatus: http.StatusBadRequest,
			wantKind:   errors.KindInvalidInput,
		},
		{
			name:       "model unavailable",
			url:        watchURL,
			notReady:   "no module named faster_whisper",
			wantStatus: http.StatusInternalServerError,
			wantKind:   errors.KindModelUnavailable,
		},
		{
			name:        "download failed",
			url:         watchURL,
			downloadErr: errors.OfKind(errors.KindUpstreamFailure, "test", nil, "yt-dlp failed"),
			wantStatus:  http.StatusInternalServerError,
			wantKind:    errors.KindUpstreamFailure,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &fakeAdapter{result: audioResult(), notReady: tt.notReady}
			downloader := &fakeDownloader{err: tt.downloadErr}
			h := newTestServer(t, nil, WithServices(&fakeResolver{}, adapter), WithDownloader(downloader))

			rr := doJSON(t, h, http.MethodPost, "/transcribe-url", models.TranscribeURLRequest{URL: tt.url})

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, string(tt.wantKind), decode(t, rr)["error_kind"])
			assert.Equal(t, tt.wantCalls, downloader.calls)
			assert.Zero(t, adapter.calls)
			if downloader.dir != "" {
				assert.False(t, fileExists(downloader.dir))
			}
		})
	}
}

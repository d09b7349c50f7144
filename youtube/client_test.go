package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playerOK = `{
  "playabilityStatus": {"status": "OK"},
  "captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
    {"baseUrl": "%[1]s/api/timedtext?v=abc&lang=en&kind=asr", "languageCode": "en", "kind": "asr", "name": {"runs": [{"text": "English (auto-generated)"}]}},
    {"baseUrl": "%[1]s/api/timedtext?v=abc&lang=en", "languageCode": "en", "name": {"simpleText": "English"}},
    {"baseUrl": "%[1]s/api/timedtext?v=abc&lang=de", "languageCode": "de", "name": {"simpleText": "German"}}
  ]}}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestListTracks(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/youtubei/v1/player", r.URL.Path)

		var body playerRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body.VideoID)
		assert.Equal(t, androidClientName, body.Context.Client.ClientName)

		fmt.Fprintf(w, playerOK, srvURL)
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	tracks, err := c.ListTracks(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	assert.Equal(t, models.CaptionTrack{
		Language:    "en",
		Name:        "English (auto-generated)",
		IsGenerated: true,
		Handle:      srv.URL + "/api/timedtext?v=abc&lang=en&kind=asr",
	}, tracks[0])
	assert.False(t, tracks[1].IsGenerated)
	assert.Equal(t, "English", tracks[1].Name)
	assert.Equal(t, "de", tracks[2].Language)
}

func TestListTracksClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "no captions renderer",
			status: http.StatusOK,
			body:   `{"playabilityStatus": {"status": "OK"}}`,
			want:   errors.ErrCaptionsDisabled,
		},
		{
			name:   "empty track list",
			status: http.StatusOK,
			body:   `{"playabilityStatus": {"status": "OK"}, "captions": {"playerCaptionsTracklistRenderer": {"captionTracks": []}}}`,
			want:   errors.ErrCaptionsDisabled,
		},
		{
			name:   "unplayable",
			status: http.StatusOK,
			body:   `{"playabilityStatus": {"status": "ERROR", "reason": "Video unavailable"}}`,
			want:   errors.ErrVideoUnavailable,
		},
		{
			name:   "bot check",
			status: http.StatusOK,
			body:   `{"playabilityStatus": {"status": "LOGIN_REQUIRED", "reason": "Sign in to confirm you're not a bot"}}`,
			want:   errors.ErrUpstreamBlocked,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `slow down`,
			want:   errors.ErrUpstreamBlocked,
		},
		{
			name:   "captcha page",
			status: http.StatusOK,
			body:   `<html><div class="g-recaptcha"></div></html>`,
			want:   errors.ErrUpstreamBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.ListTracks(context.Background(), "abc")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestListTracksServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ListTracks(context.Background(), "abc")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrCaptionsNotFound))
	assert.False(t, errors.Is(err, errors.ErrCaptionsDisabled))
}

func TestFetchFlat(t *testing.T) {
	var gotLang []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/timedtext", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("v"))
		gotLang = append(gotLang, r.URL.Query().Get("lang"))

		if r.URL.Query().Get("lang") == "fr" {
			// YouTube answers unknown languages with an empty 200.
			return
		}
		io.WriteString(w, `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0.5" dur="1.25">Hello &amp;amp; welcome</text><text start="1.75" dur="2">it&amp;#39;s
here</text></transcript>`)
	})

	segments, err := c.FetchFlat(context.Background(), "abc", "en")
	require.NoError(t, err)
	assert.Equal(t, []models.TranscriptSegment{
		{Text: "Hello & welcome", Start: 0.5, End: 1.75},
		{Text: "it's here", Start: 1.75, End: 3.75},
	}, segments)

	_, err = c.FetchFlat(context.Background(), "abc", "fr")
	assert.True(t, errors.Is(err, errors.ErrCaptionsNotFound))

	_, err = c.FetchFlat(context.Background(), "abc", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "fr", ""}, gotLang)
}

func TestFetchTrack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lang") == "xx" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `<timedtext format="3"><body><p t="1000" d="2500"><s>hello</s><s> there</s></p><p t="4000" d="500">plain</p></body></timedtext>`)
	})

	segments, err := c.FetchTrack(context.Background(), models.CaptionTrack{
		Language: "en",
		Handle:   c.baseURL + "/api/timedtext?v=abc&lang=en",
	})
	require.NoError(t, err)
	assert.Equal(t, []models.TranscriptSegment{
		{Text: "hello there", Start: 1, End: 3.5},
		{Text: "plain", Start: 4, End: 4.5},
	}, segments)

	_, err = c.FetchTrack(context.Background(), models.CaptionTrack{
		Language: "xx",
		Handle:   c.baseURL + "/api/timedtext?v=abc&lang=xx",
	})
	assert.True(t, errors.Is(err, errors.ErrCaptionsNotFound))

	_, err = c.FetchTrack(context.Background(), models.CaptionTrack{Language: "en"})
	assert.True(t, errors.Is(err, errors.ErrCaptionsNotFound))
}

func TestFlatOnlyHidesListing(t *testing.T) {
	var src interface{} = FlatOnly(NewClient())
	_, ok := src.(interface {
		ListTracks(context.Context, string) ([]models.CaptionTrack, error)
	})
	assert.False(t, ok)
}

func TestParseTimedTextRejectsGarbage(t *testing.T) {
	_, err := ParseTimedText([]byte("not xml at all <"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrCaptionsNotFound))

	_, err = ParseTimedText([]byte("<transcript></transcript>"))
	assert.True(t, errors.Is(err, errors.ErrCaptionsNotFound))
}

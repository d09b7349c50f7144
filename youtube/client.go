package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL       = "https://www.youtube.com"
	defaultTimeout       = 20 * time.Second
	androidClientName    = "ANDROID"
	androidClientVersion = "20.10.38"
	androidUserAgent     = "com.google.android.youtube/20.10.38 (Linux; U; Android 14) gzip"
	maxResponseBytes     = 10 << 20
)

// Client talks to YouTube's player and timedtext endpoints. It lists the
// caption tracks of a video, fetches a single track, and performs the
// legacy flat timedtext fetch.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at another host, mostly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type playerRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
			HL            string `json:"hl"`
		} `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer *struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string    `json:"baseUrl"`
	LanguageCode string    `json:"languageCode"`
	Kind         string    `json:"kind"`
	Name         trackName `json:"name"`
}

type trackName struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (n trackName) String() string {
	if n.SimpleText != "" {
		return n.SimpleText
	}
	var sb strings.Builder
	for _, r := range n.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// ListTracks enumerates the caption tracks of a video in the order the
// player API returns them.
func (c *Client) ListTracks(ctx context.Context, videoID string) ([]models.CaptionTrack, error) {
	const op = "youtube.Client.ListTracks"

	var body playerRequest
	body.Context.Client.ClientName = androidClientName
	body.Context.Client.ClientVersion = androidClientVersion
	body.Context.Client.HL = "en"
	body.VideoID = videoID

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: encode player request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/youtubei/v1/player?prettyPrint=false", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: video %s", op, videoID)
	}

	var resp playerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrapf(err, "%s: decode player response", op)
	}

	status := resp.PlayabilityStatus
	switch status.Status {
	case "LOGIN_REQUIRED":
		if strings.Contains(strings.ToLower(status.Reason), "bot") {
			return nil, errors.Wrapf(errors.ErrUpstreamBlocked, "%s: %s", op, status.Reason)
		}
		return nil, errors.Wrapf(errors.ErrVideoUnavailable, "%s: %s", op, status.Reason)
	case "ERROR", "UNPLAYABLE":
		return nil, errors.Wrapf(errors.ErrVideoUnavailable, "%s: %s", op, status.Reason)
	}

	if resp.Captions == nil || resp.Captions.Renderer == nil || len(resp.Captions.Renderer.CaptionTracks) == 0 {
		return nil, errors.Wrapf(errors.ErrCaptionsDisabled, "%s: video %s", op, videoID)
	}

	tracks := make([]models.CaptionTrack, 0, len(resp.Captions.Renderer.CaptionTracks))
	for _, t := range resp.Captions.Renderer.CaptionTracks {
		tracks = append(tracks, models.CaptionTrack{
			Language:    t.LanguageCode,
			Name:        t.Name.String(),
			IsGenerated: t.Kind == "asr",
			Handle:      t.BaseURL,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"tracks":   len(tracks),
	}).Debug("Listed caption tracks")

	return tracks, nil
}

// FetchTrack downloads and parses one enumerated track.
func (c *Client) FetchTrack(ctx context.Context, track models.CaptionTrack) ([]models.TranscriptSegment, error) {
	const op = "youtube.Client.FetchTrack"

	if track.Handle == "" {
		return nil, errors.Wrapf(errors.ErrCaptionsNotFound, "%s: track %s has no url", op, track.Language)
	}
	return c.fetchTimedText(ctx, op, track.Handle)
}

// FetchFlat performs the single-call timedtext fetch. An empty lang lets
// YouTube pick its default track.
func (c *Client) FetchFlat(ctx context.Context, videoID, lang string) ([]models.TranscriptSegment, error) {
	const op = "youtube.Client.FetchFlat"

	q := url.Values{}
	q.Set("v", videoID)
	if lang != "" {
		q.Set("lang", lang)
	}
	return c.fetchTimedText(ctx, op, c.baseURL+"/api/timedtext?"+q.Encode())
}

func (c *Client) fetchTimedText(ctx context.Context, op, rawURL string) ([]models.TranscriptSegment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}

	data, err := c.do(req)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	segments, err := ParseTimedText(data)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return segments, nil
}

// do executes req and classifies the response: 429 and captcha pages are
// blocks, 404 means the resource has no captions.
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", androidUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Wrap(errors.ErrUpstreamBlocked, "status 429")
	case bytes.Contains(data, []byte(`class="g-recaptcha"`)):
		return nil, errors.Wrap(errors.ErrUpstreamBlocked, "captcha challenge")
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrap(errors.ErrCaptionsNotFound, "status 404")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	return data, nil
}

// FlatClient exposes only the fetch operations of a Client, hiding track
// enumeration from callers that probe for it.
type FlatClient struct {
	client *Client
}

func FlatOnly(c *Client) *FlatClient {
	return &FlatClient{client: c}
}

func (f *FlatClient) FetchTrack(ctx context.Context, track models.CaptionTrack) ([]models.TranscriptSegment, error) {
	return f.client.FetchTrack(ctx, track)
}

func (f *FlatClient) FetchFlat(ctx context.Context, videoID, lang string) ([]models.TranscriptSegment, error) {
	return f.client.FetchFlat(ctx, videoID, lang)
}

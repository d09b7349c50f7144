package youtube

import (
	"net/url"
	"strings"

	"github.com/nijaru/yt-transcript/models"
)

var watchHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
}

// ExtractID returns the video ID carried by a YouTube URL. It recognizes
// watch?v=, youtu.be/, /embed/ and /v/ URLs with or without a scheme and
// reports false for anything else.
func ExtractID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := u.Hostname()

	if host == "youtu.be" {
		return firstSegment(u.Path)
	}
	if !watchHosts[host] {
		return "", false
	}

	switch {
	case u.Path == "/watch":
		q, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return "", false
		}
		id := q.Get("v")
		return id, id != ""
	case strings.HasPrefix(u.Path, "/embed/"):
		return firstSegment(strings.TrimPrefix(u.Path, "/embed"))
	case strings.HasPrefix(u.Path, "/v/"):
		return firstSegment(strings.TrimPrefix(u.Path, "/v"))
	}
	return "", false
}

func firstSegment(path string) (string, bool) {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path, path != ""
}

// NewVideoRef parses raw into a VideoRef. An unrecognized URL yields a ref
// without an ID rather than an error.
func NewVideoRef(raw string) models.VideoRef {
	id, _ := ExtractID(raw)
	return models.VideoRef{RawURL: raw, ID: id}
}

package youtube

import (
	"context"

	"github.com/nijaru/yt-transcript/errors"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

type VideoMetadata struct {
	Title   string `json:"title"`
	Channel string `json:"channel"`
}

// MetadataClient looks up video details through the YouTube Data API.
type MetadataClient struct {
	service *ytapi.Service
}

func NewMetadataClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*MetadataClient, error) {
	const op = "youtube.NewMetadataClient"

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: create service", op)
	}
	return &MetadataClient{service: service}, nil
}

// Lookup returns the title and channel of a video.
func (m *MetadataClient) Lookup(ctx context.Context, videoID string) (*VideoMetadata, error) {
	const op = "youtube.MetadataClient.Lookup"

	resp, err := m.service.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: videos.list", op)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, errors.Wrapf(errors.ErrVideoUnavailable, "%s: %s", op, videoID)
	}

	snippet := resp.Items[0].Snippet
	return &VideoMetadata{
		Title:   snippet.Title,
		Channel: snippet.ChannelTitle,
	}, nil
}

package transcript

import (
	"context"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
)

// CaptionSource fetches caption text for a video.
type CaptionSource interface {
	FetchTrack(ctx context.Context, track models.CaptionTrack) ([]models.TranscriptSegment, error)
	// FetchFlat fetches captions without a track listing. An empty lang
	// leaves the choice to the provider.
	FetchFlat(ctx context.Context, videoID, lang string) ([]models.TranscriptSegment, error)
}

// TrackLister is implemented by caption sources that can enumerate the
// tracks of a video.
type TrackLister interface {
	ListTracks(ctx context.Context, videoID string) ([]models.CaptionTrack, error)
}

// Acquired is what a successful strategy hands to the normalizer.
type Acquired struct {
	Segments []models.TranscriptSegment
	Language string
	// IsGenerated is nil when the source does not say.
	IsGenerated *bool
}

// Strategy is one way of obtaining a transcript. Fetch fails with an error
// wrapping errors.ErrCaptionsNotFound when the strategy has nothing to offer.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, videoID string) (*Acquired, error)
}

const (
	StrategyManual    = "manual_caption"
	StrategyGenerated = "auto_generated_caption"
	StrategyLegacy    = "legacy_flat_fetch"
)

type manualCaption struct {
	source    CaptionSource
	tracks    []models.CaptionTrack
	languages []string
}

func (s *manualCaption) Name() string { return StrategyManual }

func (s *manualCaption) Fetch(ctx context.Context, videoID string) (*Acquired, error) {
	var candidates []models.CaptionTrack
	for _, lang := range s.languages {
		for _, track := range s.tracks {
			if !track.IsGenerated && track.Language == lang {
				candidates = append(candidates, track)
			}
		}
	}
	if acquired, err := fetchFirst(ctx, s.source, candidates); acquired != nil || err != nil {
		return acquired, err
	}
	return nil, errors.Wrapf(errors.ErrCaptionsNotFound, "no manual track in %v", s.languages)
}

type autoGeneratedCaption struct {
	source    CaptionSource
	tracks    []models.CaptionTrack
	languages []string
}

func (s *autoGeneratedCaption) Name() string { return StrategyGenerated }

func (s *autoGeneratedCaption) Fetch(ctx context.Context, videoID string) (*Acquired, error) {
	var candidates []models.CaptionTrack
	seen := make(map[int]bool)
	for _, lang := range s.languages {
		for i, track := range s.tracks {
			if track.IsGenerated && track.Language == lang && !seen[i] {
				seen[i] = true
				candidates = append(candidates, track)
			}
		}
	}
	for i, track := range s.tracks {
		if track.IsGenerated && !seen[i] {
			candidates = append(candidates, track)
		}
	}
	if acquired, err := fetchFirst(ctx, s.source, candidates); acquired != nil || err != nil {
		return acquired, err
	}
	return nil, errors.Wrap(errors.ErrCaptionsNotFound, "no generated track")
}

// fetchFirst fetches candidates in order and returns the first track that
// has content. A track reported as not found moves on to the next one; any
// other error stops the walk. Both results are nil when nothing matched.
func fetchFirst(ctx context.Context, source CaptionSource, candidates []models.CaptionTrack) (*Acquired, error) {
	for _, track := range candidates {
		acquired, err := fetchTrack(ctx, source, track)
		if err == nil {
			return acquired, nil
		}
		if !errors.Is(err, errors.ErrCaptionsNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func fetchTrack(ctx context.Context, source CaptionSource, track models.CaptionTrack) (*Acquired, error) {
	segments, err := source.FetchTrack(ctx, track)
	if err != nil {
		return nil, err
	}
	generated := track.IsGenerated
	return &Acquired{
		Segments:    segments,
		Language:    track.Language,
		IsGenerated: &generated,
	}, nil
}

type legacyFlatFetch struct {
	source    CaptionSource
	languages []string
}

func (s *legacyFlatFetch) Name() string { return StrategyLegacy }

// enumerated reports whether s works from the listed tracks. A transport
// failure on a listed track ends the resolution.
func enumerated(s Strategy) bool {
	switch s.(type) {
	case *manualCaption, *autoGeneratedCaption:
		return true
	}
	return false
}

// Fetch tries each preferred language, then the provider default. A
// transport failure does not stop the walk but is reported if nothing
// else succeeds.
func (s *legacyFlatFetch) Fetch(ctx context.Context, videoID string) (*Acquired, error) {
	var firstErr error
	for _, lang := range append(append([]string{}, s.languages...), "") {
		segments, err := s.source.FetchFlat(ctx, videoID, lang)
		if err == nil && len(segments) > 0 {
			return &Acquired{Segments: segments, Language: lang}, nil
		}
		if err != nil && !errors.Is(err, errors.ErrCaptionsNotFound) && firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, errors.Wrap(errors.ErrCaptionsNotFound, "flat fetch returned nothing")
}

package scripts

import (
	"context"
	"math"
	"strings"

	"github.com/nijaru/yt-transcript/models"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const BackendOpenAI = "openai"

type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for compatible servers
	Model   string // defaults to whisper-1
}

// OpenAITranscriber sends audio to the OpenAI transcription endpoint.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

func NewOpenAITranscriber(cfg OpenAIConfig) (*OpenAITranscriber, error) {
	const op = "OpenAITranscriber.New"

	if cfg.APIKey == "" {
		return nil, newScriptError(op, nil, "OPENAI_API_KEY is required for the openai backend")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (o *OpenAITranscriber) Transcribe(ctx context.Context, path string, opts Options) (*ModelOutput, error) {
	const op = "OpenAITranscriber.Transcribe"

	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: opts.Language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	}
	if opts.WordTimestamps {
		req.TimestampGranularities = append(req.TimestampGranularities,
			openai.TranscriptionTimestampGranularityWord)
	}

	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, newScriptError(op, err, "remote transcription failed")
	}

	out := &ModelOutput{
		Language: languageCode(resp.Language),
		Duration: resp.Duration,
	}

	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, ModelSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	if opts.WordTimestamps && len(out.Segments) > 0 {
		// The API reports no per-word probability; each word inherits the
		// confidence of the segment it falls in.
		confidence := make([]float64, len(resp.Segments))
		for i, seg := range resp.Segments {
			confidence[i] = math.Min(1, math.Exp(seg.AvgLogprob))
		}

		idx := 0
		for _, w := range resp.Words {
			for idx < len(out.Segments)-1 && w.Start >= out.Segments[idx].End {
				idx++
			}
			out.Segments[idx].Words = append(out.Segments[idx].Words, models.WordTiming{
				Word:        w.Word,
				Start:       w.Start,
				End:         w.End,
				Probability: confidence[idx],
			})
		}
	}

	if len(out.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		out.Segments = []ModelSegment{{Start: 0, End: resp.Duration, Text: resp.Text}}
	}

	return out, nil
}

func (o *OpenAITranscriber) Info() models.ModelInfo {
	return models.ModelInfo{
		Backend:   BackendOpenAI,
		ModelSize: o.model,
	}
}

// Reentrant is true: each call is an independent HTTP request.
func (o *OpenAITranscriber) Reentrant() bool { return true }

func (o *OpenAITranscriber) LoadError() error { return nil }

func (o *OpenAITranscriber) Close() error { return nil }

// languageCode maps the English language name the API answers with
// ("english") back to a code. Codes pass through unchanged.
func languageCode(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if tag, err := language.Parse(name); err == nil {
		base, _ := tag.Base()
		return base.String()
	}

	namer := display.English.Languages()
	for _, code := range models.SupportedLanguageCodes {
		if strings.EqualFold(namer.Name(language.MustParse(code)), name) {
			return code
		}
	}
	return strings.ToLower(name)
}

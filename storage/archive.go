package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
)

const keyPrefix = "transcripts/"

type ArchiveConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

// Archive writes successful transcripts to an S3-compatible bucket.
// Nothing reads them back.
type Archive struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// ArchivedTranscript is the stored document.
type ArchivedTranscript struct {
	Key        string                     `json:"key"`
	Source     models.Source              `json:"source"`
	Input      string                     `json:"input"`
	VideoID    string                     `json:"video_id,omitempty"`
	Language   string                     `json:"language,omitempty"`
	Strategy   string                     `json:"strategy,omitempty"`
	Text       string                     `json:"text"`
	Segments   []models.TranscriptSegment `json:"segments,omitempty"`
	ModelInfo  *models.ModelInfo          `json:"model_info,omitempty"`
	ArchivedAt time.Time                  `json:"archived_at"`
}

func NewArchive(ctx context.Context, cfg ArchiveConfig) (*Archive, error) {
	const op = "storage.NewArchive"

	if cfg.Bucket == "" {
		return nil, errors.InvalidInput(op, nil, "archive bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Internal(op, err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Archive{
		client: client,
		bucket: cfg.Bucket,
		now:    time.Now,
	}, nil
}

// Key is the object key a transcript with the given id is stored under.
func Key(id string) string {
	return keyPrefix + id + ".json"
}

// Save stores a successful result under id. Failed results are skipped.
func (a *Archive) Save(ctx context.Context, id string, rec *models.RequestRecord, result models.TranscriptResult) error {
	const op = "Archive.Save"

	if !result.Success {
		return nil
	}

	doc := ArchivedTranscript{
		Key:        Key(id),
		Source:     rec.Source,
		Input:      rec.Input,
		VideoID:    rec.VideoID,
		Language:   rec.Language,
		Strategy:   result.Strategy,
		Text:       result.TextValue(),
		Segments:   result.Segments,
		ModelInfo:  result.ModelInfo,
		ArchivedAt: a.now().UTC(),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Internal(op, err, "failed to marshal transcript")
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(doc.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Internal(op, err, fmt.Sprintf("failed to upload %s", doc.Key))
	}

	return nil
}

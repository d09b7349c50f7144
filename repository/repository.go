package repository

import (
	"context"

	"github.com/nijaru/yt-transcript/models"
)

// RequestRepository stores the request log. It is written after each
// request and only read by the log endpoint.
type RequestRepository interface {
	Save(ctx context.Context, record *models.RequestRecord) error
	Recent(ctx context.Context, limit int) ([]*models.RequestRecord, error)
}

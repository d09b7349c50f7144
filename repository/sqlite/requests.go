package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	saveAttempts       = 3
)

// RequestRepository is the sqlite-backed request log.
type RequestRepository struct {
	db      *DB
	backoff time.Duration
}

func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db, backoff: time.Second}
}

func (r *RequestRepository) Save(ctx context.Context, record *models.RequestRecord) error {
	const op = "RequestRepository.Save"

	for i := 0; i < saveAttempts; i++ {
		err := r.save(ctx, record)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return errors.Internal(op, err, "Failed to save request")
		}

		select {
		case <-ctx.Done():
			return errors.Internal(op, ctx.Err(), "Cancelled while waiting for database lock")
		case <-time.After(r.backoff * time.Duration(i+1)):
		}
	}
	return errors.Internal(op, nil, "Failed after retries")
}

func (r *RequestRepository) save(ctx context.Context, record *models.RequestRecord) error {
	_, err := r.db.statements.insert.ExecContext(ctx,
		record.ID,
		nullString(record.RequestID),
		string(record.Source),
		record.Input,
		nullString(record.VideoID),
		record.Success,
		nullString(record.ErrorKind),
		nullString(record.Strategy),
		nullString(record.Language),
		record.CharacterCount,
		record.Duration.Milliseconds(),
		record.CreatedAt.UTC(),
	)
	return err
}

// Recent returns up to limit records, newest first. A non-positive limit
// selects the default and large limits are capped.
func (r *RequestRepository) Recent(ctx context.Context, limit int) ([]*models.RequestRecord, error) {
	const op = "RequestRepository.Recent"

	limit = ClampLimit(limit)

	rows, err := r.db.statements.recent.QueryContext(ctx, limit)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query requests")
	}
	defer rows.Close()

	records := make([]*models.RequestRecord, 0, limit)
	for rows.Next() {
		var record models.RequestRecord
		var source string
		var requestID, videoID, errorKind, strategy, language sql.NullString
		var durationMs int64
		if err := rows.Scan(
			&record.ID,
			&requestID,
			&source,
			&record.Input,
			&videoID,
			&record.Success,
			&errorKind,
			&strategy,
			&language,
			&record.CharacterCount,
			&durationMs,
			&record.CreatedAt,
		); err != nil {
			return nil, errors.Internal(op, err, "Failed to scan request")
		}

		record.Source = models.Source(source)
		record.RequestID = requestID.String
		record.VideoID = videoID.String
		record.ErrorKind = errorKind.String
		record.Strategy = strategy.String
		record.Language = language.String
		record.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to read requests")
	}

	return records, nil
}

// ClampLimit applies the default and maximum page size for Recent.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "busy")
}

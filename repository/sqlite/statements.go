package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nijaru/yt-transcript/errors"
)

const (
	insertRequestQuery = `
        INSERT INTO requests (
            id, request_id, source, input, video_id, success, error_kind,
            strategy, language, character_count, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	recentRequestsQuery = `
        SELECT id, request_id, source, input, video_id, success, error_kind,
               strategy, language, character_count, duration_ms, created_at
        FROM requests
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `
)

type PreparedStatements struct {
	insert *sql.Stmt
	recent *sql.Stmt
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	const op = "PreparedStatements.Prepare"

	var err error

	if stmts.insert, err = db.PrepareContext(ctx, insertRequestQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare insert statement")
	}

	if stmts.recent, err = db.PrepareContext(ctx, recentRequestsQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare recent statement")
	}

	return nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	for _, stmt := range [...]*sql.Stmt{stmts.insert, stmts.recent} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}

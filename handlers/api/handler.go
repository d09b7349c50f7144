package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/middleware"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/repository"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every error that is not a transcript result.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Archiver stores successful transcripts.
type Archiver interface {
	Save(ctx context.Context, id string, rec *models.RequestRecord, result models.TranscriptResult) error
}

// recorder writes the request log and archive. Both are optional and
// failures never reach the client.
type recorder struct {
	log     repository.RequestRepository
	archive Archiver
}

func (rc *recorder) record(ctx context.Context, source models.Source, input, videoID string, result models.TranscriptResult, took time.Duration) {
	if rc == nil || (rc.log == nil && rc.archive == nil) {
		return
	}

	ctx = context.WithoutCancel(ctx)
	logger := middleware.GetLogger(ctx)

	id := newID()
	rec := models.NewRequestRecord(id, middleware.GetRequestID(ctx), source, input, videoID, result, took)

	if rc.log != nil {
		if err := rc.log.Save(ctx, rec); err != nil {
			logger.WithError(err).Warn("Failed to save request log entry")
		}
	}

	if rc.archive != nil && result.Success {
		key := videoID
		if key == "" {
			key = string(source) + "-" + id
		}
		if err := rc.archive.Save(ctx, key, rec, result); err != nil {
			logger.WithError(err).WithField("key", key).Warn("Failed to archive transcript")
		}
	}
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

// respondResult answers with a transcript payload, choosing the status from
// the result's error kind.
func respondResult(w http.ResponseWriter, r *http.Request, result models.TranscriptResult, payload interface{}) {
	code := http.StatusOK
	if !result.Success {
		code = errors.KindStatus(result.ErrorKind())
	}
	respondJSON(w, r, code, payload)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	resp := ErrorResponse{
		Error:     "Internal server error",
		RequestID: middleware.GetRequestID(r.Context()),
	}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		resp.Error = appErr.Message
		resp.ErrorKind = string(appErr.Kind)
	}

	entry := middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"status":     code,
		"error_type": errorType(err),
	}).WithError(err)
	if code >= 500 {
		entry.Error("Request error")
	} else {
		entry.Info("Request rejected")
	}

	respondJSON(w, r, code, resp)
}

func readJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.TooLarge("readJSON", err, "Request body too large")
		}
		return errors.InvalidInput("readJSON", err, "Invalid JSON format")
	}
	return nil
}

func errorType(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		err = appErr.Err
	}
	return fmt.Sprintf("%T", errors.Cause(err))
}

func newID() string {
	return uuid.NewString()
}

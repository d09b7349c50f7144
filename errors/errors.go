package errors

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the closed set of failure classes a transcript request can end in.
type Kind string

const (
	KindInvalidInput          Kind = "InvalidInput"
	KindTranscriptsDisabled   Kind = "TranscriptsDisabled"
	KindUnsupportedFormat     Kind = "UnsupportedFormat"
	KindNoTranscriptAvailable Kind = "NoTranscriptAvailable"
	KindUpstreamFailure       Kind = "UpstreamFailure"
	KindTranscriptionFailure  Kind = "TranscriptionFailure"
	KindModelUnavailable      Kind = "ModelUnavailable"
)

// Collaborator signals. Caption and download clients return these (possibly
// wrapped); the resolver matches them with Is.
var (
	ErrCaptionsNotFound = New("no caption track found")
	ErrCaptionsDisabled = New("captions are disabled for this video")
	ErrVideoUnavailable = New("video is unavailable")
	ErrUpstreamBlocked  = New("request blocked by upstream")
)

type AppError struct {
	Code    int    `json:"-"`
	Kind    Kind   `json:"error_kind,omitempty"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// KindStatus maps a failure class to the HTTP status the API answers with.
func KindStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindUnsupportedFormat:
		return http.StatusBadRequest
	case KindTranscriptsDisabled, KindNoTranscriptAvailable:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// OfKind builds an AppError whose status follows from kind.
func OfKind(kind Kind, op string, err error, message string) *AppError {
	return &AppError{
		Code:    KindStatus(kind),
		Kind:    kind,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return OfKind(KindInvalidInput, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Unprocessable(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func TooLarge(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusRequestEntityTooLarge,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func RateLimitExceeded(op string) *AppError {
	return &AppError{
		Code:    http.StatusTooManyRequests,
		Message: "Rate limit exceeded",
		Op:      op,
	}
}

// KindOf reports the taxonomy class carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var appErr *AppError
	if As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind, true
	}
	return "", false
}

func New(message string) error {
	return pkgerrors.New(message)
}

func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

func Is(err, target error) bool {
	return pkgerrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return pkgerrors.As(err, target)
}

// Cause returns the innermost error of a pkg/errors wrap chain.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

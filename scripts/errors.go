package scripts

import (
	"fmt"

	"github.com/nijaru/yt-transcript/errors"
)

// ErrModelUnavailable marks failures to get a model running.
var ErrModelUnavailable = errors.New("speech model unavailable")

type ScriptError struct {
	Op      string
	Err     error
	Message string
}

func (e *ScriptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func newScriptError(op string, err error, message string) *ScriptError {
	return &ScriptError{
		Op:      op,
		Err:     err,
		Message: message,
	}
}

// modelMessage prefers the message of a ScriptError over its full chain.
func modelMessage(err error) string {
	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) && scriptErr.Message != "" {
		return scriptErr.Message
	}
	return err.Error()
}

package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	maxURLLength = 2048
	maxLanguages = 10
)

type Validator struct {
	maxUploadBytes int64
}

func NewValidator(maxUploadBytes int64) *Validator {
	return &Validator{maxUploadBytes: maxUploadBytes}
}

// ValidateURL checks that a URL was supplied and is sane to pass on. Whether
// it names a video is decided by the caller.
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}
	if len(urlStr) > maxURLLength {
		return errors.InvalidInput(op, nil, "URL is too long")
	}
	if strings.IndexFunc(urlStr, unicode.IsControl) >= 0 {
		return errors.InvalidInput(op, nil, "URL contains invalid characters")
	}

	return nil
}

// ParseLanguages splits a comma separated list of language codes, dropping
// blanks. Codes keep their original spelling since caption tracks are
// matched on it.
func (v *Validator) ParseLanguages(values ...string) ([]string, error) {
	const op = "Validator.ParseLanguages"

	var langs []string
	for _, value := range values {
		for _, code := range strings.Split(value, ",") {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			if _, err := language.Parse(code); err != nil {
				return nil, errors.InvalidInput(op, err, fmt.Sprintf("Invalid language code %q", code))
			}
			langs = append(langs, code)
		}
	}
	if len(langs) > maxLanguages {
		return nil, errors.InvalidInput(op, nil, fmt.Sprintf("At most %d languages may be requested", maxLanguages))
	}
	return langs, nil
}

// ValidateLanguageHint accepts an empty hint, "auto" or a language code.
func (v *Validator) ValidateLanguageHint(hint string) error {
	const op = "Validator.ValidateLanguageHint"

	hint = strings.TrimSpace(hint)
	if hint == "" || strings.EqualFold(hint, models.AutoDetect) {
		return nil
	}
	if _, err := language.Parse(hint); err != nil {
		return errors.InvalidInput(op, err, fmt.Sprintf("Invalid language code %q", hint))
	}
	return nil
}

// RequestValidationOpts holds options for request validation
type RequestValidationOpts struct {
	AllowedMethods []string
	RequireJSON    bool
	// LimitBody caps the body at the validator's upload ceiling.
	LimitBody bool
}

// ValidateRequest validates HTTP requests
func (v *Validator) ValidateRequest(r *http.Request, opts RequestValidationOpts) error {
	const op = "Validator.ValidateRequest"

	// Method validation
	if len(opts.AllowedMethods) > 0 {
		methodAllowed := false
		for _, method := range opts.AllowedMethods {
			if r.Method == method {
				methodAllowed = true
				break
			}
		}
		if !methodAllowed {
			return errors.InvalidInput(op, nil, fmt.Sprintf("Method %s not allowed", r.Method))
		}
	}

	// Content type validation
	if opts.RequireJSON {
		if contentType := r.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			return errors.InvalidInput(op, nil, "Content-Type must be application/json")
		}
	}

	// Content length validation
	if opts.LimitBody && v.maxUploadBytes > 0 && r.ContentLength > v.maxUploadBytes {
		return errors.TooLarge(op, nil, "Request body too large")
	}

	return nil
}

// SupportedLanguages maps each offered language code to its English name,
// plus the auto-detect hint.
func SupportedLanguages() map[string]string {
	namer := display.English.Tags()
	langs := make(map[string]string, len(models.SupportedLanguageCodes)+1)
	langs[models.AutoDetect] = "Auto-detect"
	for _, code := range models.SupportedLanguageCodes {
		langs[code] = namer.Name(language.Make(code))
	}
	return langs
}

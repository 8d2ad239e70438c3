package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	domainerrors "github.com/taleforge/taleforge/internal/errors"
)

// errorBody covers the error shapes the API has produced: our own
// {code, message, details}, Spring's {error, message, errors} and huma's
// {title, detail, errors: [{message, location}]}.
type errorBody struct {
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Error   string          `json:"error"`
	Title   string          `json:"title"`
	Details json.RawMessage `json:"details"`
	Errors  json.RawMessage `json:"errors"`
}

type fieldError struct {
	Field          string `json:"field"`
	Location       string `json:"location"`
	Message        string `json:"message"`
	DefaultMessage string `json:"defaultMessage"`
}

// Classify maps an HTTP status and response body to the error taxonomy.
// It returns nil for 2xx. The status is kept on the returned error.
func Classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	parsed := parseErrorBody(body)
	msg := parsed.message(status)

	var e *domainerrors.Error
	switch {
	case status == http.StatusUnauthorized:
		e = domainerrors.Unauthorized(msg)
	case status == http.StatusForbidden:
		e = domainerrors.Forbidden(msg)
	case status == http.StatusNotFound:
		e = domainerrors.NotFound(msg)
	case status == http.StatusTooManyRequests:
		e = domainerrors.Unavailable(msg)
	case status >= 400 && status < 500:
		e = domainerrors.Validation(msg)
		if fields := parsed.fields(); len(fields) > 0 {
			e = e.WithDetails(fields)
		}
	default:
		e = domainerrors.Unavailable(msg)
	}
	return e.WithStatus(status)
}

func parseErrorBody(body []byte) errorBody {
	var b errorBody
	if len(body) == 0 {
		return b
	}
	// Non-JSON bodies (proxies, plain text) keep only the status text.
	_ = json.Unmarshal(body, &b)
	return b
}

func (b errorBody) message(status int) string {
	for _, s := range []string{b.Message, b.Detail, b.Error, b.Title} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "request failed"
}

// fields merges field messages from "details" and "errors", each of which may be
// an object of field to message or a list of field errors.
func (b errorBody) fields() map[string]string {
	out := make(map[string]string)
	collectFields(b.Details, out)
	collectFields(b.Errors, out)
	return out
}

func collectFields(raw json.RawMessage, out map[string]string) {
	if len(raw) == 0 {
		return
	}

	var byField map[string]any
	if err := json.Unmarshal(raw, &byField); err == nil {
		for k, v := range byField {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return
	}

	var list []fieldError
	if err := json.Unmarshal(raw, &list); err != nil {
		return
	}
	for _, fe := range list {
		field := fe.Field
		if field == "" {
			field = strings.TrimPrefix(fe.Location, "body.")
		}
		msg := fe.Message
		if msg == "" {
			msg = fe.DefaultMessage
		}
		if field == "" || msg == "" {
			continue
		}
		out[field] = msg
	}
}

package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/utafrali/lagosbazaar/pkg/errors"
)

// maxErrorBody caps how much of an error body is read into memory.
const maxErrorBody = 1 << 20

// UpstreamError describes a non-2xx response from an outbound API.
//
// Two error body shapes are understood: the storefront's own envelope
// ({"error":{"code":"NOT_FOUND","message":"..."}}) and the Google API
// envelope ({"error":{"code":429,"message":"...","status":"RESOURCE_EXHAUSTED"}}).
type UpstreamError struct {
	Service string
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Service, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Message)
}

// Unwrap maps the status onto the shared sentinel errors so callers can use
// errors.Is(err, apperrors.ErrRateLimited) and friends.
func (e *UpstreamError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Status == http.StatusConflict:
		return apperrors.ErrConflict
	case e.Status == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case e.Status >= 500:
		return apperrors.ErrServiceUnavail
	case e.Status >= 400:
		return apperrors.ErrInvalidInput
	default:
		return nil
	}
}

// Transient reports whether the same request may succeed later.
func (e *UpstreamError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type errorEnvelope struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Status  string          `json:"status"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and returns
// an *UpstreamError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	upErr := &UpstreamError{Service: serviceName, Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		upErr.Message = fmt.Sprintf("failed to read body: %v", err)
		return upErr
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		upErr.Message = env.Error.Message
		upErr.Code = errorCode(env.Error.Code, env.Error.Status)
		return upErr
	}

	upErr.Message = strings.TrimSpace(string(body))
	if upErr.Message == "" {
		upErr.Message = http.StatusText(resp.StatusCode)
	}
	return upErr
}

// errorCode prefers the symbolic status ("RESOURCE_EXHAUSTED") of a Google
// error, then a string code, then the numeric code rendered as text.
func errorCode(raw json.RawMessage, status string) string {
	if status != "" {
		return status
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n int
	if json.Unmarshal(raw, &n) == nil && n != 0 {
		return strconv.Itoa(n)
	}
	return ""
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

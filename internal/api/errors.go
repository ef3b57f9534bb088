package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tidwall/gjson"
)

// HTTPError is a non-2xx response. Body keeps the raw text.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("api error (%d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("api error (%d)", e.StatusCode)
}

// Message picks the most specific human readable text out of the body.
func (e *HTTPError) Message() string {
	if gjson.Valid(e.Body) {
		for _, path := range []string{"message", "error.message", "error", "errors.0"} {
			if v := gjson.Get(e.Body, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
		// validation errors: {"errors":{"field":["text"]}}
		var first string
		gjson.Get(e.Body, "errors").ForEach(func(_, v gjson.Result) bool {
			if v.IsArray() {
				v = v.Get("0")
			}
			if v.Type == gjson.String {
				first = v.String()
				return false
			}
			return true
		})
		if first != "" {
			return first
		}
	}
	return strings.TrimSpace(e.Body)
}

// Unauthorized reports a rejected or expired token.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsUnauthorized unwraps err looking for a 401/403 response.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Unauthorized()
}

var connectivityHints = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"timeout",
	"eof",
	"unable to resolve host",
	"failed to connect",
	"tls handshake",
}

// IsConnectivityError classifies err as a network problem rather than an
// application failure.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, hint := range connectivityHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}

// Package httputil provides helpers for working with HTTP payloads safely.
package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

const (
	// DefaultMaxResponseBodyBytes caps upstream response bodies to 10MB.
	DefaultMaxResponseBodyBytes int64 = 10 * 1024 * 1024

	// DefaultMaxRequestBodyBytes caps inbound API request bodies to 1MB.
	DefaultMaxRequestBodyBytes int64 = 1 << 20

	// maxErrorBodyBytes caps upstream error payloads kept for mapping.
	maxErrorBodyBytes int64 = 64 * 1024
)

var (
	// ErrResponseBodyTooLarge is returned when a body exceeds its limit.
	ErrResponseBodyTooLarge = errors.New("response body too large")

	// ErrEmptyBody is returned when a JSON request carries no body.
	ErrEmptyBody = errors.New("request body is empty")
)

// ReadLimitedBody reads up to maxBytes from reader and returns ErrResponseBodyTooLarge when exceeded.
func ReadLimitedBody(reader io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(reader)
	}

	limited := io.LimitReader(reader, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return body, err
	}
	if int64(len(body)) > maxBytes {
		body = body[:int(maxBytes)]
		return body, ErrResponseBodyTooLarge
	}
	return body, nil
}

// ReadErrorBody reads a bounded prefix of an upstream error response. Read
// failures yield whatever was read so the status code can still be mapped.
func ReadErrorBody(resp *http.Response) []byte {
	body, _ := ReadLimitedBody(resp.Body, maxErrorBodyBytes)
	return body
}

// DecodeJSON decodes a size-limited JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	body, err := ReadLimitedBody(r.Body, DefaultMaxRequestBodyBytes)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// Package netutil recreates the small JSON-fetch helper this module's HTTP
// call sites are built on: a single generic FetchJSON that handles request
// construction, status/content-type checking, and JSON decoding, so every
// call into a Firefox-Accounts-style endpoint goes through one code path.
package netutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Result wraps a decoded JSON body alongside the response headers, since
// some endpoints (device registration, commands) carry data in headers
// (ETags, rate-limit hints) the caller needs.
type Result[T any] struct {
	Data    T
	Headers http.Header
}

// ErrorHandler inspects a non-2xx response and its body, returning a
// replacement error to surface instead of the default HTTPError. Returning
// nil falls back to the default HTTPError.
type ErrorHandler func(resp *http.Response, body []byte) error

type fetchOptions struct {
	method       string
	headers      map[string]string
	body         io.Reader
	errorHandler ErrorHandler
}

// Option configures a FetchJSON call.
type Option func(*fetchOptions)

// WithMethod overrides the default GET method.
func WithMethod(method string) Option {
	return func(o *fetchOptions) { o.method = method }
}

// WithHeader sets (or overrides, including Accept/Content-Type) a request
// header.
func WithHeader(key, value string) Option {
	return func(o *fetchOptions) { o.headers[key] = value }
}

// WithBody sets the request body.
func WithBody(body io.Reader) Option {
	return func(o *fetchOptions) { o.body = body }
}

// WithErrorHandler installs a custom handler for non-2xx responses, used to
// decode provider-specific error bodies (e.g. OAuth's `error`/
// `error_description` pair) into a more useful error than a bare HTTPError.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *fetchOptions) { o.errorHandler = h }
}

// FetchJSON issues an HTTP request and decodes a JSON response body into T.
// It defaults to GET with an "Accept: application/json" header; opts can
// change the method, add headers or a body, or install a custom error
// handler for non-2xx responses.
func FetchJSON[T any](ctx context.Context, client *http.Client, rawURL string, opts ...Option) (*Result[T], error) {
	options := fetchOptions{
		method: http.MethodGet,
		headers: map[string]string{
			"Accept":       "application/json",
			"X-Request-Id": uuid.NewString(),
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	req, err := http.NewRequestWithContext(ctx, options.method, rawURL, options.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if options.errorHandler != nil {
			if handled := options.errorHandler(resp, body); handled != nil {
				return nil, handled
			}
		}
		return nil, NewHTTPError(resp.StatusCode, rawURL, resp.Status)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "application/json") {
		return nil, fmt.Errorf("unexpected content type: %q", ct)
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &Result[T]{Data: data, Headers: resp.Header}, nil
}

// FetchJSONWithForm POSTs url-encoded form data and decodes a JSON response,
// the shape every FxA token-endpoint call (grant exchange, refresh, destroy)
// uses.
func FetchJSONWithForm[T any](ctx context.Context, client *http.Client, rawURL string, form url.Values, opts ...Option) (*Result[T], error) {
	allOpts := append([]Option{
		WithMethod(http.MethodPost),
		WithHeader("Content-Type", "application/x-www-form-urlencoded"),
		WithBody(strings.NewReader(form.Encode())),
	}, opts...)
	return FetchJSON[T](ctx, client, rawURL, allOpts...)
}

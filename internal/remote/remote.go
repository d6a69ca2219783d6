// Package remote holds the HTTP plumbing shared by the plotting server and
// scenario backend clients.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

var (
	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrResponseTooLarge is returned when a response body exceeds maxBody.
	ErrResponseTooLarge = errors.New("response too large")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

// Doer is the subset of *http.Client the clients need.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoint joins base and path and appends query, skipping empty parameters.
func Endpoint(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + path
	for k, vs := range query {
		if len(vs) == 0 || vs[0] == "" {
			query.Del(k)
		}
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Get fetches rawURL and returns its body.
func Get(ctx context.Context, c Doer, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return do(c, req)
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func GetJSON(ctx context.Context, c Doer, rawURL string, v any) error {
	body, err := Get(ctx, c, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("GET %s: %w: %v", rawURL, ErrMalformedResponse, err)
	}
	return nil
}

// PostForm sends form as an urlencoded POST body and discards the response.
func PostForm(ctx context.Context, c Doer, rawURL string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = do(c, req)
	return err
}

func do(c Doer, req *http.Request) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: req.Method, URL: req.URL.String(), Code: resp.StatusCode}
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("%s %s: %w (over %d bytes)", req.Method, req.URL, ErrResponseTooLarge, maxBody)
	}
	return body, nil
}

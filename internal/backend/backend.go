package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"modelr/internal/remote"
)

// ErrNotFound is returned when the backend has no scenario with the requested name.
var ErrNotFound = errors.New("scenario not found")

const savePath = "/save_scenario"

// Client stores and loads named scenarios on the scenario backend.
type Client struct {
	base   string
	http   remote.Doer
	logger *slog.Logger
}

// New creates a client for the backend at base. A nil httpClient uses a
// default client with a 30s timeout.
func New(base string, httpClient remote.Doer, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:   base,
		http:   httpClient,
		logger: logger.With("component", "backend"),
	}
}

// Save stores data under name.
func (c *Client) Save(ctx context.Context, name string, data []byte) error {
	form := url.Values{"name": {name}, "json": {string(data)}}
	if err := remote.PostForm(ctx, c.http, remote.Endpoint(c.base, savePath, nil), form); err != nil {
		return fmt.Errorf("save scenario %s: %w", name, err)
	}
	c.logger.Debug("scenario saved", "name", name, "bytes", len(data))
	return nil
}

// Load returns the data stored under name.
func (c *Client) Load(ctx context.Context, name string) ([]byte, error) {
	u := remote.Endpoint(c.base, savePath, url.Values{"name": {name}})
	data, err := remote.Get(ctx, c.http, u)
	if err != nil {
		var se *remote.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("load scenario %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("load scenario %s: %w", name, err)
	}
	c.logger.Debug("scenario loaded", "name", name, "bytes", len(data))
	return data, nil
}

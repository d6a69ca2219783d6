package plotserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"modelr/internal/remote"
	"modelr/internal/schema"
)

// ScriptDoc is one entry of the script listing.
type ScriptDoc struct {
	Script string `json:"script"`
	Doc    string `json:"doc"`
}

// UnmarshalJSON decodes the server's [script, doc] pair form.
func (d *ScriptDoc) UnmarshalJSON(data []byte) error {
	var pair []*string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 || pair[0] == nil {
		return fmt.Errorf("script entry %s: want [script, doc]", data)
	}
	d.Script = *pair[0]
	d.Doc = ""
	if pair[1] != nil {
		d.Doc = *pair[1]
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c remote.Doer) Option {
	return func(p *Client) {
		p.http = c
	}
}

// WithScriptType selects the script family sent as the type parameter.
func WithScriptType(t string) Option {
	return func(p *Client) {
		p.scriptType = t
	}
}

// WithTimeout bounds each request made by the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(p *Client) {
		p.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Client) {
		p.logger = l
	}
}

// Client reads script listings and schemas from a plotting server. It is
// immutable after New and safe for concurrent use.
type Client struct {
	hostname   string
	rocks      map[string]string
	scriptType string
	timeout    time.Duration
	http       remote.Doer
	logger     *slog.Logger
}

// New creates a client for the server at hostname. rocks maps rock names to
// their "vp,vs,rho" values and is copied.
func New(hostname string, rocks map[string]string, opts ...Option) *Client {
	p := &Client{
		hostname: hostname,
		rocks:    make(map[string]string, len(rocks)),
		timeout:  30 * time.Second,
		logger:   slog.Default(),
	}
	for k, v := range rocks {
		p.rocks[k] = v
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.http == nil {
		p.http = &http.Client{Timeout: p.timeout}
	}
	p.logger = p.logger.With("component", "plotserver")
	return p
}

// Hostname returns the server base URL.
func (p *Client) Hostname() string { return p.hostname }

// Rocks returns a copy of the rock mapping.
func (p *Client) Rocks() map[string]string {
	out := make(map[string]string, len(p.rocks))
	for k, v := range p.rocks {
		out[k] = v
	}
	return out
}

// Scripts lists the scripts the server offers.
func (p *Client) Scripts(ctx context.Context) ([]ScriptDoc, error) {
	u := remote.Endpoint(p.hostname, "/available_scripts.json", url.Values{"type": {p.scriptType}})
	var docs []ScriptDoc
	if err := remote.GetJSON(ctx, p.http, u, &docs); err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	p.logger.Debug("listed scripts", "count", len(docs))
	return docs, nil
}

// ScriptInfo fetches the argument schema of script.
func (p *Client) ScriptInfo(ctx context.Context, script string) (*schema.Info, error) {
	u := remote.Endpoint(p.hostname, "/script_help.json", url.Values{
		"script": {script},
		"type":   {p.scriptType},
	})
	body, err := remote.Get(ctx, p.http, u)
	if err != nil {
		return nil, fmt.Errorf("script info %s: %w", script, err)
	}
	info, err := schema.ParseInfo(body)
	if err != nil {
		return nil, fmt.Errorf("script info %s: %w: %v", script, remote.ErrMalformedResponse, err)
	}
	p.logger.Debug("fetched script info", "script", script, "arguments", len(info.Arguments))
	return info, nil
}

// PlotURL returns the image URL for a query string built by
// Scenario.QueryString.
func (p *Client) PlotURL(qs string) string {
	u := strings.TrimRight(p.hostname, "/") + "/plot.jpeg" + qs
	if p.scriptType != "" {
		u += "&type=" + url.QueryEscape(p.scriptType)
	}
	return u
}

// Plot renders the plot for qs and returns the image bytes.
func (p *Client) Plot(ctx context.Context, qs string) ([]byte, error) {
	u := p.PlotURL(qs)
	img, err := remote.Get(ctx, p.http, u)
	if err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	p.logger.Debug("rendered plot", "bytes", len(img))
	return img, nil
}

// Package github stores documents in a GitHub repository through the
// REST contents API. The blob "sha" GitHub reports for a file is used as
// its conflict token.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/sitecost/pkg/core"
)

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "sitecost"

// Client is a core.RemoteStore for one repository.
type Client struct {
	baseURL    string
	loc        core.RemoteLocation
	credential string
	http       *http.Client
	logger     *slog.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (GitHub Enterprise, tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a client for loc authenticated with credential.
func New(loc core.RemoteLocation, credential string, opts ...Option) *Client {
	c := &Client{
		baseURL:    core.DefaultAPIURL,
		loc:        loc.WithDefaults(),
		credential: credential,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connector builds Clients sharing the same options.
type Connector struct {
	opts []Option
}

// NewConnector returns a core.Connector for GitHub.
func NewConnector(opts ...Option) *Connector {
	return &Connector{opts: opts}
}

// Connect implements core.Connector.
func (c *Connector) Connect(loc core.RemoteLocation, credential string) (core.RemoteStore, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return New(loc, credential, c.opts...), nil
}

var (
	_ core.Connector   = (*Connector)(nil)
	_ core.RemoteStore = (*Client)(nil)
)

type contentResponse struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) repoURL() string {
	return fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(c.loc.Owner), url.PathEscape(c.loc.Repo))
}

func (c *Client) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.repoURL() + "/contents/" + strings.Join(segments, "/")
}

// Fetch implements core.RemoteStore.
func (c *Client) Fetch(ctx context.Context, path string) (core.RemoteFile, error) {
	u := c.contentsURL(path)
	if c.loc.Branch != "" {
		u += "?ref=" + url.QueryEscape(c.loc.Branch)
	}

	var body contentResponse
	if err := c.do(ctx, "fetch", path, http.MethodGet, u, nil, &body); err != nil {
		return core.RemoteFile{}, err
	}
	if body.Type != "" && body.Type != "file" {
		return core.RemoteFile{}, core.NewSyncError("fetch", path, core.ErrMalformed, fmt.Errorf("path is a %s, not a file", body.Type))
	}
	if body.Encoding != "" && body.Encoding != "base64" {
		return core.RemoteFile{}, core.NewSyncError("fetch", path, core.ErrMalformed, fmt.Errorf("unsupported encoding %q", body.Encoding))
	}

	// GitHub wraps base64 content at 60 columns.
	raw := strings.NewReplacer("\n", "", "\r", "").Replace(body.Content)
	content, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return core.RemoteFile{}, core.NewSyncError("fetch", path, core.ErrMalformed, err)
	}

	c.logger.Debug("fetched document", "path", path, "sha", body.SHA, "bytes", len(content))
	return core.RemoteFile{Path: path, Content: content, Token: body.SHA}, nil
}

// Put implements core.RemoteStore. An empty token creates the file.
func (c *Client) Put(ctx context.Context, path string, content []byte, token, message string) (string, error) {
	req := putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     token,
		Branch:  c.loc.Branch,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var body putResponse
	if err := c.do(ctx, "put", path, http.MethodPut, c.contentsURL(path), payload, &body); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return "", &core.ConflictError{Path: path, ExpectedToken: token, CurrentToken: ""}
		}
		return "", err
	}
	if body.Content.SHA == "" {
		return "", core.NewSyncError("put", path, core.ErrMalformed, errors.New("response carries no sha"))
	}

	c.logger.Debug("wrote document", "path", path, "sha", body.Content.SHA)
	return body.Content.SHA, nil
}

// Ping implements core.RemoteStore using the repository endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", c.loc.String(), http.MethodGet, c.repoURL(), nil, nil)
}

func (c *Client) do(ctx context.Context, op, path, method, u string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return core.NewSyncError(op, path, core.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("github request", "method", method, "url", u)
	resp, err := c.http.Do(req)
	if err != nil {
		return core.NewSyncError(op, path, core.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return core.NewSyncError(op, path, core.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return core.NewSyncError(op, path, core.ErrMalformed, err)
	}
	return nil
}

func statusError(op, path string, status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	detail := fmt.Errorf("http %d: %s", status, apiErr.Message)

	var kind error
	switch {
	case status == http.StatusNotFound:
		kind = core.ErrNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = core.ErrUnauthorized
	case status == http.StatusConflict, status == http.StatusPreconditionFailed, status == http.StatusUnprocessableEntity:
		kind = core.ErrConflict
	default:
		kind = core.ErrTransport
	}
	return core.NewSyncError(op, path, kind, detail)
}

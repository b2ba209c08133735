package mangadex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.mangadex.org"
	defaultUserAgent = "MangaVote/1.0"

	PathManga      = "/manga"
	PathStatistics = "/statistics/manga"
)

var knownPaths = map[string]struct{}{
	PathManga:      {},
	PathStatistics: {},
}

// Request is a logical upstream call. Query values may be scalars or slices;
// slice values repeat the parameter once per element.
type Request struct {
	Path   string
	Method string
	Header http.Header
	Query  map[string]any
	Body   any
}

// UpstreamError wraps every network, status, and decode failure of a single call.
type UpstreamError struct {
	Path   string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("mangadex %s: status %d: %v", e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("mangadex %s: %v", e.Path, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Client is a stateless executor against the MangaDex API. It never retries.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

// Options configures a Client; zero values fall back to defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	HTTP      *http.Client
}

// NewClient builds a client against the fixed base origin.
func NewClient(opts Options, log *slog.Logger) *Client {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, userAgent: userAgent, http: httpClient, logger: log}
}

// Fetch executes req and decodes the JSON response into out.
func (c *Client) Fetch(ctx context.Context, req Request, out any) error {
	if err := c.fetch(ctx, req, out); err != nil {
		c.warn("mangadex request failed", "path", req.Path, "error", err)
		return err
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, req Request, out any) error {
	if _, ok := knownPaths[req.Path]; !ok {
		return &UpstreamError{Path: req.Path, Err: fmt.Errorf("unknown endpoint")}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint, err := buildURL(c.baseURL, req.Path, req.Query)
	if err != nil {
		return &UpstreamError{Path: req.Path, Err: err}
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return &UpstreamError{Path: req.Path, Err: fmt.Errorf("marshal body: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &UpstreamError{Path: req.Path, Err: fmt.Errorf("new request: %w", err)}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &UpstreamError{Path: req.Path, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{
			Path:   req.Path,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet))),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Path: req.Path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func buildURL(base, path string, query map[string]any) (string, error) {
	parsed, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %s%s: %w", base, path, err)
	}

	values := url.Values{}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := query[key].(type) {
		case nil:
		case []string:
			for _, item := range v {
				values.Add(key, item)
			}
		case []int:
			for _, item := range v {
				values.Add(key, strconv.Itoa(item))
			}
		case []any:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}

	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

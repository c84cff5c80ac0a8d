package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultContentType is sent with every request unless overridden by action headers.
const DefaultContentType = "application/json"

// APIService provides methods for making raw HTTP requests to the watchlist API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the watchlist API.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// NewAuthenticatedClient returns an HTTP client that sends token as a bearer credential.
// An empty token yields a plain client. The timeout bounds each request; zero means none.
func NewAuthenticatedClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	if token == "" {
		return &http.Client{Timeout: timeout}
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	client.Timeout = timeout
	return client
}

// BaseURL returns the base URL relative targets are resolved against.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status is in the success range.
func (r *APIResponse) OK() bool {
	return shared.IsSuccessStatus(r.StatusCode)
}

// ResolveURL returns target unchanged when absolute, otherwise joined to the base URL.
func (a *APIService) ResolveURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url %q: %v", shared.ErrInvalidInput, target, err)
	}
	if u.IsAbs() {
		return target, nil
	}

	base, err := url.Parse(a.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("%w: invalid base url %q: %v", shared.ErrInvalidConfig, a.baseURL, err)
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery}).String(), nil
}

// Do performs a request and returns the raw response regardless of status.
//
// Headers are applied over the default Content-Type, so callers can replace it.
func (a *APIService) Do(ctx context.Context, method, target string, body []byte, headers map[string]string) (*APIResponse, error) {
	fullURL, err := a.ResolveURL(target)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", DefaultContentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, nil, nil)
}

// Execute sends the request described by in and fails unless the API answers with a success status.
func (a *APIService) Execute(ctx context.Context, in models.ActionInput) (*APIResponse, error) {
	resp, err := a.Do(ctx, in.Method, in.URL, []byte(in.Body), in.Headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return resp, fmt.Errorf("%w: %s %s returned status %d", shared.ErrAPIRequest, in.Method, in.URL, resp.StatusCode)
	}
	return resp, nil
}

// HTTPReplayer replays queued actions through an [APIService].
type HTTPReplayer struct {
	api *APIService
}

// NewHTTPReplayer creates a replayer sending requests through api.
func NewHTTPReplayer(api *APIService) *HTTPReplayer {
	return &HTTPReplayer{api: api}
}

// Replay executes the action's stored request.
func (r *HTTPReplayer) Replay(ctx context.Context, action models.QueuedAction) error {
	_, err := r.api.Execute(ctx, action.Input())
	return err
}

// Package supabase provides adapters for a Supabase backend: GoTrue for sign-in and
// PostgREST for the has_role/set_user_access functions and the profile tables.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/cse-console/internal/ports"
)

const maxErrorBody = 4 << 10

// Config holds the project coordinates.
type Config struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client // Optional, defaults to a client with a 30s timeout
}

// Client is a thin JSON client for the Supabase REST surfaces. Requests carry the user's
// access token when one is stored, so row-level security sees the signed-in operator.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	tokens  ports.TokenStore
}

// NewClient constructs a Client. tokens may be nil for anonymous access.
func NewClient(cfg Config, tokens ports.TokenStore) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("supabase URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}
	u, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase URL %q", cfg.URL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: u, apiKey: cfg.AnonKey, http: httpClient, tokens: tokens}, nil
}

// APIError is a non-2xx response from GoTrue or PostgREST.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// request describes one REST call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// bearer overrides the stored access token; empty means use the store, then the anon key.
	bearer string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	bearer, err := c.bearer(ctx, r.bearer)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.path, err)
	}
	return nil
}

func (c *Client) bearer(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.tokens == nil {
		return c.apiKey, nil
	}
	tok, err := c.tokens.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return c.apiKey, nil
	}
	return tok.AccessToken, nil
}

// decodeAPIError reads the GoTrue/PostgREST error shapes into an APIError.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
		ErrorDescription string `json:"error_description"`
		Code             any    `json:"code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	_ = json.Unmarshal(raw, &payload)

	apiErr := &APIError{Status: resp.StatusCode}
	switch {
	case payload.ErrorCode != "":
		apiErr.Code = payload.ErrorCode
	case payload.Error != "":
		apiErr.Code = payload.Error
	default:
		if s, ok := payload.Code.(string); ok {
			apiErr.Code = s
		}
	}
	apiErr.Message = firstNonEmpty(payload.ErrorDescription, payload.Msg, payload.Message, strings.TrimSpace(string(raw)))
	return apiErr
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

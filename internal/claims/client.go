package claims

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

	"github.com/pvoronin/claimroute/internal/cache"
	"github.com/pvoronin/claimroute/internal/model"
	"github.com/pvoronin/claimroute/internal/util"
	"github.com/pvoronin/claimroute/internal/worker"
)

const fetchMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// ErrClaimNotFound indicates the claim store has no claim with the
// requested id.
var ErrClaimNotFound = errors.New("claim not found")

// Client talks to the external claim store. Fetches go through an
// optional payload cache and a per-host rate limiter; reassignments are
// written back in the store's legacy name-based shape.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxBytes   int64
	cache      cache.Cache
	cacheTTL   time.Duration
	limiter    *worker.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithCache enables payload caching with the given TTL
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithLimiter throttles requests through the given limiter
func WithLimiter(l *worker.Limiter) Option {
	return func(cl *Client) { cl.limiter = l }
}

// NewClient creates a claim store client from the HTTP configuration
func NewClient(cfg model.HTTPConfig, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Fetch retrieves a claim payload by id. Any failure is reported as a
// FetchError: the caller must not present a recommendation without
// claim data.
func (c *Client) Fetch(ctx context.Context, claimID string) (*model.ClaimPayload, error) {
	if strings.TrimSpace(claimID) == "" {
		return nil, &model.FetchError{ClaimID: claimID, Err: errors.New("empty claim id")}
	}

	if c.cache != nil {
		if data, found := c.cache.Get(cache.Key(claimID)); found {
			var claim model.ClaimPayload
			if err := json.Unmarshal(data, &claim); err == nil {
				return &claim, nil
			}
			// Corrupt entry: drop it and fall through to a fresh fetch.
			_ = c.cache.Delete(cache.Key(claimID))
		}
	}

	body, err := c.getWithRetry(ctx, c.baseURL+"/claims/"+url.PathEscape(claimID))
	if err != nil {
		return nil, &model.FetchError{ClaimID: claimID, Err: err}
	}

	var claim model.ClaimPayload
	if err := json.Unmarshal(body, &claim); err != nil {
		return nil, &model.FetchError{ClaimID: claimID, Err: fmt.Errorf("decode claim: %w", err)}
	}
	if claim.ClaimID == "" {
		claim.ClaimID = claimID
	}

	if c.cache != nil {
		_ = c.cache.Set(cache.Key(claimID), body, c.cacheTTL)
	}

	return &claim, nil
}

// ReassignRequest is the store's legacy write shape: it matches
// assignments by team display name, not by target id.
type ReassignRequest struct {
	Queue    string `json:"queue"`
	Assignee string `json:"assignee,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Reassign writes a committed routing decision back to the claim store
// and invalidates the local payload cache for the claim.
func (c *Client) Reassign(ctx context.Context, claimID string, req ReassignRequest) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode reassign request: %w", err)
	}

	endpoint := c.baseURL + "/claims/" + url.PathEscape(claimID) + "/reassign"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("reassign request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("claim %s: %w", claimID, ErrClaimNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reassign: unexpected status %d", resp.StatusCode)
	}

	if c.cache != nil {
		_ = c.cache.Delete(cache.Key(claimID))
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		body, retryable, err := c.get(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		if attempt < fetchMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			fetchSleepFunc(backoff)
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, endpoint string) (body []byte, retryable bool, err error) {
	if err := c.wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, isRetryableNetworkError(err.Error()), fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrClaimNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("rate limited by claim store")
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("claim store error: %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return data, false, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	return c.limiter.Wait(ctx, parsed.Host)
}

func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

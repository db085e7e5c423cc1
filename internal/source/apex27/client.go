package apex27

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"agentsites/internal/domain"
)

const (
	SourceID = "apex27"

	// maxPages bounds a full fetch if the API keeps returning full pages.
	maxPages = 1000
)

type Config struct {
	BaseURL        string
	APIKey         string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client reads listings from the Apex27 CRM API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		pageSize:       cfg.PageSize,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

func (c *Client) ID() string {
	return SourceID
}

// FetchListings pages through every listing. Listings that fail validation
// are logged and left out. On a page failure the listings read so far are
// returned with the error.
func (c *Client) FetchListings(ctx context.Context) ([]domain.Listing, error) {
	var all []domain.Listing

	for page := 1; page <= maxPages; page++ {
		body, err := c.fetchPage(ctx, page)
		if err != nil {
			return all, fmt.Errorf("fetch page %d: %w", page, err)
		}

		listings, rejected, err := DecodeListings(body)
		if err != nil {
			return all, fmt.Errorf("fetch page %d: %w", page, err)
		}
		for idx, reason := range rejected {
			c.logger.Warn("skipping invalid listing", "page", page, "index", idx, "error", reason)
		}

		all = append(all, listings...)

		c.logger.Debug("fetched page",
			"page", page,
			"listings", len(listings),
			"total", len(all),
		)

		if len(listings)+len(rejected) < c.pageSize {
			break
		}
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]byte, error) {
	url := fmt.Sprintf("%s/listings?page=%d&pageSize=%d", c.baseURL, page, c.pageSize)

	var body []byte
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err = c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

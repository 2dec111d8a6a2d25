// Package provider implements the availability client for the external
// scheduling provider.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/baraks/slotwatch/internal/catalog"
	"github.com/baraks/slotwatch/internal/domain"
	"github.com/baraks/slotwatch/internal/pkg/ctxlog"
	"golang.org/x/time/rate"
)

const (
	defaultMaxResults  = 31
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4
)

// Config holds availability client configuration.
type Config struct {
	BaseURL              string
	AccessToken          string
	MaxResults           int
	Timeout              time.Duration
	MaxConcurrentFetches int
	RequestsPerSecond    float64
}

// Client fetches open appointment dates per service offering. One instance
// is shared by the polling cycle and the diagnostic command; it holds no
// per-cycle state.
type Client struct {
	config     Config
	catalog    *catalog.Catalog
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an availability client.
func NewClient(config Config, cat *catalog.Catalog) *Client {
	if config.MaxResults <= 0 {
		config.MaxResults = defaultMaxResults
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxConcurrentFetches <= 0 {
		config.MaxConcurrentFetches = defaultConcurrency
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Client{
		config:     config,
		catalog:    cat,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// searchResponse mirrors the provider's result envelope. A missing Results
// key and an empty list both mean no open dates.
type searchResponse struct {
	Results []struct {
		CalendarDate string `json:"calendarDate"`
	} `json:"Results"`
}

// FetchAll fetches open dates for every catalog service as of the given
// date. Per-service failures are logged, counted and recorded as zero dates;
// they never abort the batch for other services. There are no in-request
// retries: the next polling cycle is the retry mechanism.
func (c *Client) FetchAll(ctx context.Context, asOf time.Time) domain.AvailabilityBatch {
	log := ctxlog.FromContext(ctx)

	batch := make(domain.AvailabilityBatch)
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, c.config.MaxConcurrentFetches)

	for _, serviceID := range c.catalog.OrderedIDs() {
		wg.Add(1)
		sem <- struct{}{}

		go func(serviceID int64) {
			defer wg.Done()
			defer func() { <-sem }()

			dates, err := c.FetchService(ctx, serviceID, asOf)
			if err != nil {
				recordFetchFailure(serviceID)
				log.Error("availability fetch failed, recording zero dates",
					"service_id", serviceID,
					"error", err,
				)
				return
			}

			if len(dates) == 0 {
				log.Debug("no open dates", "service_id", serviceID)
				return
			}

			mu.Lock()
			batch[serviceID] = dates
			mu.Unlock()
		}(serviceID)
	}

	wg.Wait()
	return batch
}

// FetchService fetches open dates for a single service offering.
func (c *Client) FetchService(ctx context.Context, serviceID int64, asOf time.Time) ([]string, error) {
	body, err := c.fetch(ctx, serviceID, asOf)
	if err != nil {
		return nil, err
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	dates := make([]string, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		if result.CalendarDate != "" {
			dates = append(dates, result.CalendarDate)
		}
	}

	recordFetchSuccess(serviceID, len(dates))
	return dates, nil
}

// FetchRaw returns one raw provider response verbatim. Operator-facing
// diagnostic for the get_raw_response command; failures surface unfiltered.
func (c *Client) FetchRaw(ctx context.Context, serviceID int64) (string, error) {
	body, err := c.fetch(ctx, serviceID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) fetch(ctx context.Context, serviceID int64, asOf time.Time) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(c.config.MaxResults))
	q.Set("startDate", asOf.Format("2006-01-02"))
	q.Set("serviceId", strconv.FormatInt(serviceID, 10))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "JWT "+c.config.AccessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observeFetchDuration(serviceID, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

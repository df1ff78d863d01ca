// Package rates fetches currency exchange rates from the CBR daily
// JSON feed and keeps a core.Table up to date.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"spendir/internal/core"
	"spendir/internal/log"
)

const defaultTimeout = 30 * time.Second

// valute is one currency entry of the feed. Value is the price of
// Nominal units of the currency in the base currency.
type valute struct {
	CharCode string          `json:"CharCode"`
	Nominal  decimal.Decimal `json:"Nominal"`
	Value    decimal.Decimal `json:"Value"`
}

type feed struct {
	Valute map[string]valute `json:"Valute"`
}

// Client downloads the daily rates feed.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Fetch downloads the feed and returns per-unit rates keyed by
// currency code. Entries with a non-positive nominal are skipped.
func (c *Client) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create rates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}

	var f feed
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rates feed: %w", err)
	}

	rates := make(map[string]decimal.Decimal, len(f.Valute))
	for code, v := range f.Valute {
		if v.Nominal.Sign() <= 0 {
			continue
		}
		rates[code] = v.Value.Div(v.Nominal)
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("decode rates feed: no usable entries")
	}

	return rates, nil
}

// Refresher periodically replaces the rates of a core.Table. A failed
// refresh leaves the previous table in place.
type Refresher struct {
	client   *Client
	table    *core.Table
	interval time.Duration
	logger   *log.Logger
}

func NewRefresher(client *Client, table *core.Table, interval time.Duration, logger *log.Logger) *Refresher {
	return &Refresher{
		client:   client,
		table:    table,
		interval: interval,
		logger:   logger,
	}
}

// RefreshOnce fetches the feed and swaps it into the table.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	rates, err := r.client.Fetch(ctx)
	if err != nil {
		return err
	}
	if err := r.table.Replace(rates); err != nil {
		return fmt.Errorf("replace rates: %w", err)
	}
	return nil
}

// Run refreshes immediately and then on every interval tick until the
// context is canceled.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.RefreshOnce(ctx); err != nil {
		r.logger.Error("initial rates refresh failed", log.FieldError, err)
	} else {
		r.logger.Info("rates refreshed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.Error("rates refresh failed", log.FieldError, err)
				continue
			}
			r.logger.Info("rates refreshed")
		}
	}
}

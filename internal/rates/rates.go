// Package rates keeps the USD -> USDT conversion rate fresh from an HTTP feed.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
	"github.com/promohive/rewards/pkg/money"
)

// RateResponse is the body served by USDT_RATE_URL.
type RateResponse struct {
	Rate string `json:"rate"`
}

// FallbackFunc returns the rate from the settings store.
type FallbackFunc func() (string, error)

// RateService caches the feed rate and falls back to the configured setting
// when the feed is unset, failing, or has not answered for two refresh periods.
type RateService struct {
	logger   *logger.Logger
	url      string
	refresh  time.Duration
	client   *http.Client
	fallback FallbackFunc

	// In-memory cache
	rate      string
	fetchedAt time.Time
	cacheMu   sync.RWMutex
	now       func() time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRateService(logger *logger.Logger, cfg *config.Config, fallback FallbackFunc) *RateService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RateService{
		logger:   logger.Named("rates"),
		url:      cfg.USDTRateURL,
		refresh:  cfg.USDTRateRefresh,
		fallback: fallback,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

var _ models.RateProvider = (*RateService)(nil)

// Rate returns the cached feed rate while it is fresh, or the setting.
func (r *RateService) Rate() (string, error) {
	r.cacheMu.RLock()
	rate, fetchedAt := r.rate, r.fetchedAt
	r.cacheMu.RUnlock()
	if rate != "" && r.now().Sub(fetchedAt) <= 2*r.refresh {
		return rate, nil
	}
	return r.fallback()
}

// FetchAndUpdate fetches the feed and replaces the cached rate. A failed fetch
// drops the cached rate so that Rate serves the setting until the feed recovers.
func (r *RateService) FetchAndUpdate() error {
	rate, err := r.fetch()
	if err != nil {
		r.cacheMu.Lock()
		r.rate = ""
		r.cacheMu.Unlock()
		return err
	}

	r.cacheMu.Lock()
	r.rate = rate
	r.fetchedAt = r.now()
	r.cacheMu.Unlock()

	r.logger.Debug("Conversion rate updated", "rate", rate)
	return nil
}

func (r *RateService) fetch() (string, error) {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build rate request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var body RateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode rate response: %w", err)
	}
	rate, err := money.ParseRate(body.Rate)
	if err != nil {
		return "", err
	}
	return rate.String(), nil
}

// StartPeriodicUpdate refreshes the rate until Stop. It does nothing when no
// feed is configured.
func (r *RateService) StartPeriodicUpdate() {
	if r.url == "" {
		r.logger.Info("No rate feed configured, using the USDT_CONVERSION_RATE setting")
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.FetchAndUpdate(); err != nil {
			r.logger.Error("Failed to fetch conversion rate on startup", "error", err)
		}

		ticker := time.NewTicker(r.refresh)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := r.FetchAndUpdate(); err != nil {
					r.logger.Error("Failed to refresh conversion rate", "error", err)
				}
			case <-r.ctx.Done():
				r.logger.Info("Rate service periodic update stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the RateService
func (r *RateService) Stop() {
	r.cancel()
	r.wg.Wait()
}

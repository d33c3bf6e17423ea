package rates

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/pkg/logger"
)

func fallbackTo(rate string) FallbackFunc {
	return func() (string, error) { return rate, nil }
}

func TestRateFallsBackWithoutFeed(t *testing.T) {
	r := NewRateService(logger.NewNopLogger(), &config.Config{USDTRateRefresh: time.Minute}, fallbackTo("1"))
	r.StartPeriodicUpdate()
	defer r.Stop()

	rate, err := r.Rate()
	require.NoError(t, err)
	assert.Equal(t, "1", rate)
}

func TestFetchAndUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rate":"0.998"}`))
	}))
	defer srv.Close()

	r := NewRateService(logger.NewNopLogger(), &config.Config{USDTRateURL: srv.URL, USDTRateRefresh: time.Minute}, fallbackTo("1"))
	defer r.Stop()
	require.NoError(t, r.FetchAndUpdate())

	rate, err := r.Rate()
	require.NoError(t, err)
	assert.Equal(t, "0.998", rate)
}

func TestFetchRejectsBadFeed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, "upstream down"},
		{"not json", http.StatusOK, "rate=1"},
		{"zero rate", http.StatusOK, `{"rate":"0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r := NewRateService(logger.NewNopLogger(), &config.Config{USDTRateURL: srv.URL, USDTRateRefresh: time.Minute}, fallbackTo("1"))
			defer r.Stop()
			assert.Error(t, r.FetchAndUpdate())

			rate, err := r.Rate()
			require.NoError(t, err)
			assert.Equal(t, "1", rate)
		})
	}
}

func TestFailingFeedFallsBackToSetting(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rate":"0.5"}`))
	}))
	defer srv.Close()

	r := NewRateService(logger.NewNopLogger(), &config.Config{USDTRateURL: srv.URL, USDTRateRefresh: time.Minute}, fallbackTo("0.99"))
	defer r.Stop()
	require.NoError(t, r.FetchAndUpdate())
	rate, err := r.Rate()
	require.NoError(t, err)
	assert.Equal(t, "0.5", rate)

	down.Store(true)
	assert.Error(t, r.FetchAndUpdate())
	rate, err = r.Rate()
	require.NoError(t, err)
	assert.Equal(t, "0.99", rate)

	down.Store(false)
	require.NoError(t, r.FetchAndUpdate())
	rate, err = r.Rate()
	require.NoError(t, err)
	assert.Equal(t, "0.5", rate)
}

func TestStaleRateFallsBackToSetting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rate":"0.5"}`))
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	r := NewRateService(logger.NewNopLogger(), &config.Config{USDTRateURL: srv.URL, USDTRateRefresh: time.Minute}, fallbackTo("0.99"))
	defer r.Stop()
	r.now = func() time.Time { return now }
	require.NoError(t, r.FetchAndUpdate())

	now = now.Add(2 * time.Minute)
	rate, err := r.Rate()
	require.NoError(t, err)
	assert.Equal(t, "0.5", rate)

	now = now.Add(time.Second)
	rate, err = r.Rate()
	require.NoError(t, err)
	assert.Equal(t, "0.99", rate)
}

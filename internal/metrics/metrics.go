package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promohive_http_response_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohive_ledger_entries_total",
			Help: "Ledger entries appended, by entry type",
		},
		[]string{"type"},
	)

	LedgerAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohive_ledger_amount_total",
			Help: "Sum of absolute ledger entry amounts in minor units, by entry type",
		},
		[]string{"type"},
	)

	AccrualRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohive_accrual_runs_total",
			Help: "Referral accrual runs, by result",
		},
		[]string{"result"},
	)

	AccrualEdgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohive_accrual_edges_total",
			Help: "Referral edges processed by the accrual job, by outcome",
		},
		[]string{"outcome"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohive_withdrawals_total",
			Help: "Withdrawal state changes, by resulting status",
		},
		[]string{"status"},
	)
)

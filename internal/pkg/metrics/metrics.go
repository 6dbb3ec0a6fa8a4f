package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Результаты, которыми размечаются счетчики
const (
	ResultSuccess  = "success"
	ResultFailed   = "failed"
	ResultTimeout  = "timeout"
	ResultTooLarge = "too_large"
	ResultSkipped  = "skipped"
)

var (
	UpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "yadisk_bot_updates_total",
		Help: "Total number of Telegram updates handled",
	})
	TransfersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "yadisk_bot_transfers_total",
		Help: "Total number of file transfers by result",
	}, []string{"result"})
	TransferDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "yadisk_bot_transfer_duration_seconds",
		Help:    "Time from upload request to final operation status",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900, 1800},
	})
	TokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "yadisk_bot_token_refreshes_total",
		Help: "Total number of scheduled token refreshes by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(UpdatesTotal, TransfersTotal, TransferDuration, TokenRefreshesTotal)
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the donation router.
type Metrics struct {
	DonationsRouted     prometheus.Counter
	ValueRouted         prometheus.Counter
	DonationsRejected   *prometheus.CounterVec
	TransferFailures    prometheus.Counter
	ReentrancyRejected  prometheus.Counter
	DonateDurationMs    prometheus.Histogram
	RankingUpdateErrors prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DonationsRouted: factory.NewCounter(prometheus.CounterOpts{
			Name: "giveroute_donations_routed_total",
			Help: "Total number of donations forwarded to a charity",
		}),
		ValueRouted: factory.NewCounter(prometheus.CounterOpts{
			Name: "giveroute_value_routed_total",
			Help: "Sum of donated base units forwarded to charities",
		}),
		DonationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "giveroute_donations_rejected_total",
			Help: "Donations that failed, by error code",
		}, []string{"code"}),
		TransferFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "giveroute_transfer_failures_total",
			Help: "Donations rolled back because the transfer failed",
		}),
		ReentrancyRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "giveroute_reentrancy_rejected_total",
			Help: "Donation calls rejected because a transfer of the same router was in flight",
		}),
		DonateDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "giveroute_donate_duration_ms",
			Help:    "Latency of donation calls in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
		RankingUpdateErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "giveroute_ranking_update_errors_total",
			Help: "Leaderboard updates that failed after a donation committed",
		}),
	}
}

func (m *Metrics) ObserveRouted(amount uint64) {
	m.DonationsRouted.Inc()
	m.ValueRouted.Add(float64(amount))
}

func (m *Metrics) IncrementRejected(code string) {
	m.DonationsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementTransferFailure() {
	m.TransferFailures.Inc()
}

func (m *Metrics) IncrementReentrancy() {
	m.ReentrancyRejected.Inc()
}

func (m *Metrics) ObserveDonateDuration(d time.Duration) {
	m.DonateDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *Metrics) IncrementRankingError() {
	m.RankingUpdateErrors.Inc()
}

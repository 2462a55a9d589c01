package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
type Metrics struct {
	CharitiesRegistered prometheus.Counter
	BatchSize           prometheus.Histogram
	Mutations           *prometheus.CounterVec
}

// New registers the registry metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CharitiesRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "giveroute_charities_registered_total",
			Help: "Total number of charities registered, single and batch",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "giveroute_charity_batch_size",
			Help:    "Number of entries in committed register batches",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "giveroute_registry_mutations_total",
			Help: "Successful registry mutations by action",
		}, []string{"action"}), // action: "register", "rename", "remove", "set_active"
	}
}

func (m *Metrics) IncrementRegistered(n int) {
	m.CharitiesRegistered.Add(float64(n))
}

func (m *Metrics) ObserveBatch(n int) {
	m.BatchSize.Observe(float64(n))
}

func (m *Metrics) IncrementMutation(action string) {
	m.Mutations.WithLabelValues(action).Inc()
}

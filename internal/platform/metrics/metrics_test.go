package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsRoutePattern(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/charities/{destination}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/charities/abc", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
	assert.Contains(t, gatherLabels(t, m), "/charities/{destination}")
}

func gatherLabels(t *testing.T, m *Metrics) []string {
	t.Helper()
	ch := make(chan prometheus.Metric, 8)
	m.RequestDuration.Collect(ch)
	close(ch)
	var routes []string
	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == "route" {
				routes = append(routes, lp.GetValue())
			}
		}
	}
	return routes
}

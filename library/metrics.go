package library

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the counters of one catalog. Each catalog owns its own
// registry so independent catalogs never share series.
type Metrics struct {
	Registry *prometheus.Registry

	operations  *prometheus.CounterVec
	activeLoans prometheus.GaugeFunc
}

// newMetrics registers the catalog series. countLoans is called on every
// gather, so the loan gauge always matches the store.
func newMetrics(countLoans func() float64) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "operations_total",
			Help:      "Catalog operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		activeLoans: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "library",
			Name:      "active_loans",
			Help:      "Books currently issued to members.",
		}, countLoans),
	}
	m.Registry.MustRegister(m.operations, m.activeLoans)
	return m
}

func (m *Metrics) observe(operation string, r Result) {
	m.operations.WithLabelValues(operation, outcome(r)).Inc()
}

// Sample is a single gathered series, flattened for display.
type Sample struct {
	Name   string  `json:"name"`
	Labels string  `json:"labels,omitempty"`
	Value  float64 `json:"value"`
}

// Snapshot gathers every series in the registry, sorted by name and labels.
func (m *Metrics) Snapshot() ([]Sample, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			samples = append(samples, Sample{
				Name:   mf.GetName(),
				Labels: formatLabels(metric.GetLabel()),
				Value:  sampleValue(mf.GetType(), metric),
			})
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	return strings.Join(parts, ",")
}

func sampleValue(t dto.MetricType, metric *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue()
	default:
		return metric.GetUntyped().GetValue()
	}
}

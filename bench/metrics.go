package bench

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	substrateEvm   = "evm"
	substrateGuest = "guest"
)

// Metrics records suite runs on a private registry. A nil *Metrics records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	executionDuration *prometheus.HistogramVec
	scenarioTotal     *prometheus.CounterVec
	guestCalls        *prometheus.GaugeVec
	evmGasUsed        *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wasmbench",
				Subsystem: "execution",
				Name:      "duration_seconds",
				Help:      "Duration of a single payload execution by substrate",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"substrate"},
		),
		scenarioTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wasmbench",
				Subsystem: "scenario",
				Name:      "total",
				Help:      "Total number of scenario runs by result",
			},
			[]string{"result"},
		),
		guestCalls: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "wasmbench",
				Subsystem: "guest",
				Name:      "function_calls",
				Help:      "Function calls made by the guest in the last run of a scenario",
			},
			[]string{"scenario"},
		),
		evmGasUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "wasmbench",
				Subsystem: "evm",
				Name:      "gas_used",
				Help:      "Gas used by the contract call in the last run of a scenario",
			},
			[]string{"scenario"},
		),
	}
	m.registry.MustRegister(m.executionDuration, m.scenarioTotal, m.guestCalls, m.evmGasUsed)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps all metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observeDuration(substrate string, d time.Duration) {
	if m == nil {
		return
	}
	m.executionDuration.WithLabelValues(substrate).Observe(d.Seconds())
}

func (m *Metrics) observeScenario(name string, outcome *Outcome, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.scenarioTotal.WithLabelValues("failed").Inc()
		return
	}
	m.scenarioTotal.WithLabelValues("passed").Inc()
	m.guestCalls.WithLabelValues(name).Set(float64(outcome.Report.TotalCalls()))
	m.evmGasUsed.WithLabelValues(name).Set(float64(outcome.EvmGasUsed))
}

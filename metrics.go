package edgar

import (
	"github.com/prometheus/client_golang/prometheus"
)

// clientMetrics counts SEC traffic. A nil *clientMetrics records nothing.
type clientMetrics struct {
	requests        *prometheus.CounterVec
	retries         prometheus.Counter
	downloadedBytes prometheus.Counter
}

// WithMetrics registers request, retry, and download counters on reg
func WithMetrics(reg prometheus.Registerer) ClientOption {
	return func(c *Client) {
		c.registerer = reg
	}
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgar",
			Name:      "http_requests_total",
			Help:      "SEC requests by final outcome, after retries.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgar",
			Name:      "http_retries_total",
			Help:      "SEC request attempts that were retried.",
		}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgar",
			Name:      "download_bytes_total",
			Help:      "Bytes written to disk by archive downloads.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.retries, m.downloadedBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *clientMetrics) request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *clientMetrics) retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *clientMetrics) downloaded(n int64) {
	if m == nil {
		return
	}
	m.downloadedBytes.Add(float64(n))
}

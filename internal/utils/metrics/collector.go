// internal/utils/metrics/collector.go
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "launchpad"

// Collector управляет набором метрик движка торговли.
// Each collector owns its registry so several can coexist (tests, multiple engines).
type Collector struct {
	registry *prometheus.Registry

	transactions        *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	rpcLatency          *prometheus.HistogramVec
	registryRefresh     prometheus.Histogram
	registryTokens      prometheus.Gauge
	registryFailures    prometheus.Counter
	metadataFetches     *prometheus.CounterVec
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Trade transactions by outcome, type and venue",
		}, []string{"status", "type", "venue"}),
		transactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Wall time from quote to confirmation",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"type", "venue"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "RPC request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "endpoint"}),
		registryRefresh: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_refresh_seconds",
			Help:      "Duration of a full token directory refresh",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		registryTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_tokens",
			Help:      "Tokens in the latest directory snapshot",
		}),
		registryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_slot_failures_total",
			Help:      "Multicall slots that failed or did not decode",
		}),
		metadataFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_fetches_total",
			Help:      "Off-chain metadata fetches by outcome",
		}, []string{"status"}),
	}

	c.registry.MustRegister(
		c.transactions,
		c.transactionDuration,
		c.rpcLatency,
		c.registryRefresh,
		c.registryTokens,
		c.registryFailures,
		c.metadataFetches,
	)
	return c
}

// Registry exposes the underlying registry (for gathering in tests).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.transactions.Reset()
	c.transactionDuration.Reset()
	c.rpcLatency.Reset()
	c.metadataFetches.Reset()
	c.registryTokens.Set(0)
}

// Serve runs a /metrics endpoint until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// internal/utils/metrics/metrics.go
package metrics

import (
	"context"
	"time"
)

// RecordTransaction записывает метрики транзакции с учетом контекста
func (c *Collector) RecordTransaction(ctx context.Context, txType, venue string, duration time.Duration, success bool) {
	select {
	case <-ctx.Done():
		c.transactions.WithLabelValues("cancelled", txType, venue).Inc()
		return
	default:
	}

	status := "success"
	if !success {
		status = "failed"
	}
	c.transactions.WithLabelValues(status, txType, venue).Inc()
	c.transactionDuration.WithLabelValues(txType, venue).Observe(duration.Seconds())
}

// RecordRPCLatency записывает метрики RPC-запроса
func (c *Collector) RecordRPCLatency(method, endpoint string, duration time.Duration) {
	c.rpcLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRegistryRefresh records one directory refresh.
func (c *Collector) RecordRegistryRefresh(duration time.Duration, tokens, failures int) {
	c.registryRefresh.Observe(duration.Seconds())
	c.registryTokens.Set(float64(tokens))
	c.registryFailures.Add(float64(failures))
}

// RecordMetadataFetch counts one metadata resolution.
func (c *Collector) RecordMetadataFetch(success bool) {
	status := "success"
	if !success {
		status = "placeholder"
	}
	c.metadataFetches.WithLabelValues(status).Inc()
}

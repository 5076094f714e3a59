package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordTransaction(t *testing.T) {
	c := NewCollector()
	c.RecordTransaction(context.Background(), "buy", "internal", 10*time.Millisecond, true)
	c.RecordTransaction(context.Background(), "buy", "internal", 10*time.Millisecond, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.RecordTransaction(ctx, "sell", "external", time.Millisecond, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.transactions.WithLabelValues("success", "buy", "internal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transactions.WithLabelValues("failed", "buy", "internal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transactions.WithLabelValues("cancelled", "sell", "external")))
}

func TestCollector_Registry(t *testing.T) {
	// two collectors must not collide
	a, b := NewCollector(), NewCollector()
	a.RecordRegistryRefresh(time.Second, 12, 1)
	b.RecordMetadataFetch(false)

	assert.Equal(t, 12.0, testutil.ToFloat64(a.registryTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.registryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metadataFetches.WithLabelValues("placeholder")))
}

// =============================================
// File: internal/registry/metadata.go
// =============================================
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whaleshi/b/internal/dex/model"
)

const (
	DefaultGateway    = "https://ipfs.io/ipfs/"
	DefaultBatchSize  = 10
	DefaultBatchPause = 100 * time.Millisecond
)

// MetadataFetcher loads the JSON document behind a token URI.
type MetadataFetcher interface {
	Fetch(ctx context.Context, uri string) (*model.TokenMetadata, error)
}

// ResolveURI rewrites IPFS forms onto gateway. Other URIs pass through.
func ResolveURI(uri, gateway string) string {
	uri = strings.TrimSpace(uri)
	if gateway == "" {
		gateway = DefaultGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	switch {
	case strings.HasPrefix(uri, "Qm"), strings.HasPrefix(uri, "bafy"):
		return gateway + uri
	case strings.HasPrefix(uri, "ipfs://"):
		return gateway + strings.TrimPrefix(uri, "ipfs://")
	default:
		return uri
	}
}

// HTTPMetadataFetcher fetches metadata over HTTP(S) with resty.
type HTTPMetadataFetcher struct {
	client  *resty.Client
	gateway string
}

func NewHTTPMetadataFetcher(gateway string, timeout time.Duration) *HTTPMetadataFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("Accept", "application/json")
	return &HTTPMetadataFetcher{client: client, gateway: gateway}
}

// Fetch GETs the resolved URI and decodes it.
func (f *HTTPMetadataFetcher) Fetch(ctx context.Context, uri string) (*model.TokenMetadata, error) {
	url := ResolveURI(uri, f.gateway)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported metadata uri %q", uri)
	}

	var md model.TokenMetadata
	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&md).
		ForceContentType("application/json").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode())
	}
	return &md, nil
}

// MetadataRecorder is satisfied by *metrics.Collector.
type MetadataRecorder interface {
	RecordMetadataFetch(success bool)
}

// MetadataResolver resolves each address at most once per store.
type MetadataResolver struct {
	fetcher    MetadataFetcher
	store      MetadataStore
	batchSize  int
	batchPause time.Duration
	metrics    MetadataRecorder
	logger     *zap.Logger
}

func NewMetadataResolver(fetcher MetadataFetcher, store MetadataStore, batchSize int, batchPause time.Duration, logger *zap.Logger) *MetadataResolver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchPause < 0 {
		batchPause = DefaultBatchPause
	}
	return &MetadataResolver{
		fetcher:    fetcher,
		store:      store,
		batchSize:  batchSize,
		batchPause: batchPause,
		logger:     logger.Named("metadata"),
	}
}

// WithMetrics attaches a fetch recorder.
func (r *MetadataResolver) WithMetrics(m MetadataRecorder) *MetadataResolver {
	r.metrics = m
	return r
}

// Get returns stored metadata for token.
func (r *MetadataResolver) Get(ctx context.Context, token common.Address) (model.TokenMetadata, bool) {
	md, ok, err := r.store.Get(ctx, token)
	if err != nil {
		r.logger.Debug("Metadata store read failed", zap.String("token", token.Hex()), zap.Error(err))
		return model.TokenMetadata{}, false
	}
	return md, ok
}

// Resolve fetches metadata for every record whose URI is known and whose
// address is not yet resolved. It returns how many addresses were resolved.
func (r *MetadataResolver) Resolve(ctx context.Context, records []model.TokenRecord) (int, error) {
	pending := make([]model.TokenRecord, 0, len(records))
	for _, rec := range records {
		if !rec.URIKnown {
			continue
		}
		if _, ok, err := r.store.Get(ctx, rec.Address); err == nil && ok {
			continue
		}
		pending = append(pending, rec)
	}

	resolved := 0
	for start := 0; start < len(pending); start += r.batchSize {
		end := start + r.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := r.resolveBatch(ctx, pending[start:end]); err != nil {
			return resolved, err
		}
		resolved += end - start

		if end < len(pending) && r.batchPause > 0 {
			select {
			case <-ctx.Done():
				return resolved, ctx.Err()
			case <-time.After(r.batchPause):
			}
		}
	}
	return resolved, nil
}

func (r *MetadataResolver) resolveBatch(ctx context.Context, batch []model.TokenRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range batch {
		rec := rec
		g.Go(func() error {
			md := r.fetchOne(gctx, rec)
			if err := r.store.Put(ctx, rec.Address, md); err != nil {
				return fmt.Errorf("store metadata %s: %w", rec.Address.Hex(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// fetchOne never fails: a fetch problem yields placeholder metadata.
func (r *MetadataResolver) fetchOne(ctx context.Context, rec model.TokenRecord) model.TokenMetadata {
	placeholder := model.PlaceholderMetadata(rec.Address)
	if rec.URI == "" {
		r.observe(false)
		return placeholder
	}

	md, err := r.fetcher.Fetch(ctx, rec.URI)
	if err != nil || md == nil {
		if err == nil {
			err = errors.New("empty metadata")
		}
		r.logger.Debug("Metadata fetch failed",
			zap.String("token", rec.Address.Hex()),
			zap.String("uri", rec.URI),
			zap.Error(err))
		r.observe(false)
		return placeholder
	}

	out := *md
	if out.Name == "" {
		out.Name = placeholder.Name
	}
	if out.Symbol == "" {
		out.Symbol = placeholder.Symbol
	}
	out.Placeholder = false
	r.observe(true)
	return out
}

func (r *MetadataResolver) observe(success bool) {
	if r.metrics != nil {
		r.metrics.RecordMetadataFetch(success)
	}
}

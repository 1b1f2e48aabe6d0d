// Package temporal maps (network, block number) pairs to wall-clock
// timestamps using a three-tier fallback: direct provider lookup, block
// explorer API, then average-block-time projection.
package temporal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"daoindexer/internal/chain"
	"daoindexer/internal/errs"
	"daoindexer/observability/logging"
)

// ExplorerConfig is the subset of network config the explorer tier needs.
type ExplorerConfig struct {
	APIURL         string
	APIKey         string
	AvgBlockTimeMs int64
}

// Resolver implements the three-tier timestamp lookup.
type Resolver struct {
	pool       *chain.Pool
	explorers  map[string]ExplorerConfig
	httpClient *http.Client
	log        *slog.Logger

	// sleepBackoffOverride replaces the real exponential backoff delay in
	// tests; nil in production.
	sleepBackoffOverride func() time.Duration
}

// New builds a Resolver over the given chain pool, deriving per-network
// explorer configuration from the pool's network configs.
func New(pool *chain.Pool, networks []string, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	explorers := make(map[string]ExplorerConfig, len(networks))
	for _, name := range networks {
		cfg, ok := pool.NetworkConfig(name)
		if !ok {
			continue
		}
		explorers[name] = ExplorerConfig{
			APIURL:         cfg.ExplorerAPIURL,
			APIKey:         cfg.ExplorerKey,
			AvgBlockTimeMs: cfg.AvgBlockTimeMs,
		}
	}
	return &Resolver{
		pool:      pool,
		explorers: explorers,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:       log,
	}
}

// Resolve returns the wall-clock timestamp for block on network, trying
// tier 1 (direct RPC), then tier 2 (explorer), then tier 3 (projection).
func (r *Resolver) Resolve(ctx context.Context, network string, block uint64) (time.Time, error) {
	explorer, known := r.explorers[network]
	if !known {
		return time.Time{}, errs.Fatal("temporal.Resolve", fmt.Errorf("unsupported network %q", network))
	}

	if ts, ok := r.tierDirect(ctx, network, block); ok {
		return ts, nil
	}
	r.log.Warn("temporal: tier 1 miss, falling through", "network", network, "block", block)

	if explorer.APIURL != "" {
		tip, err := r.currentBlock(ctx, network)
		if err == nil {
			if ts, ok := r.tierExplorer(ctx, explorer, block, tip); ok {
				return ts, nil
			}
		}
		r.log.Warn("temporal: tier 2 miss, falling through", "network", network, "block", block)
	}

	return r.tierAverage(ctx, network, explorer, block)
}

// tierDirect queries eth_getBlockByNumber; only useful for past blocks.
func (r *Resolver) tierDirect(ctx context.Context, network string, block uint64) (time.Time, bool) {
	provider, err := r.pool.Provider(ctx, network)
	if err != nil {
		return time.Time{}, false
	}
	header, err := provider.GetBlock(ctx, block)
	if err != nil || header == nil {
		return time.Time{}, false
	}
	return time.Unix(int64(header.Time), 0), true
}

func (r *Resolver) currentBlock(ctx context.Context, network string) (uint64, error) {
	provider, err := r.pool.Provider(ctx, network)
	if err != nil {
		return 0, err
	}
	return provider.GetBlockNumber(ctx)
}

type blockRewardResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		TimeStamp string `json:"timeStamp"`
	} `json:"result"`
}

type blockCountdownResponse struct {
	Status string `json:"status"`
	Result struct {
		EstimateTimeInSec string `json:"EstimateTimeInSec"`
	} `json:"result"`
}

// tierExplorer queries the network's block explorer API. Past blocks use
// getblockreward; future blocks use getblockcountdown.
func (r *Resolver) tierExplorer(ctx context.Context, cfg ExplorerConfig, block, currentBlock uint64) (time.Time, bool) {
	if block <= currentBlock {
		return r.explorerPast(ctx, cfg, block)
	}
	return r.explorerFuture(ctx, cfg, block)
}

func (r *Resolver) explorerPast(ctx context.Context, cfg ExplorerConfig, block uint64) (time.Time, bool) {
	url := fmt.Sprintf("%s?module=block&action=getblockreward&blockno=%d&apikey=%s", cfg.APIURL, block, cfg.APIKey)
	r.log.Debug("temporal: querying explorer", "endpoint", cfg.APIURL, "block", block, logging.MaskField("apikey", cfg.APIKey))
	var out blockRewardResponse
	if err := r.getJSON(ctx, url, &out); err != nil {
		return time.Time{}, false
	}
	if out.Status != "1" {
		return time.Time{}, false
	}
	var secs int64
	if _, err := fmt.Sscanf(out.Result.TimeStamp, "%d", &secs); err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

func (r *Resolver) explorerFuture(ctx context.Context, cfg ExplorerConfig, block uint64) (time.Time, bool) {
	url := fmt.Sprintf("%s?module=block&action=getblockcountdown&blockno=%d&apikey=%s", cfg.APIURL, block, cfg.APIKey)
	r.log.Debug("temporal: querying explorer", "endpoint", cfg.APIURL, "block", block, logging.MaskField("apikey", cfg.APIKey))
	var out blockCountdownResponse
	if err := r.getJSON(ctx, url, &out); err != nil {
		return time.Time{}, false
	}
	if out.Status != "1" {
		return time.Time{}, false
	}
	var secs int64
	if _, err := fmt.Sscanf(out.Result.EstimateTimeInSec, "%d", &secs); err != nil {
		return time.Time{}, false
	}
	return time.Now().Add(time.Duration(secs) * time.Second), true
}

func (r *Resolver) getJSON(ctx context.Context, url string, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			return err
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			cancel()
			lastErr = err
			r.sleepBackoff(ctx, attempt)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		if err != nil {
			lastErr = err
			r.sleepBackoff(ctx, attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("explorer http status %d", resp.StatusCode)
			r.sleepBackoff(ctx, attempt)
			continue
		}
		if err := json.Unmarshal(body, out); err != nil {
			return err
		}
		return nil
	}
	return lastErr
}

func (r *Resolver) sleepBackoff(ctx context.Context, attempt int) {
	d := time.Second * time.Duration(1<<uint(attempt-1))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	if r.sleepBackoffOverride != nil {
		d = r.sleepBackoffOverride()
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// tierAverage projects the timestamp from the current block and the
// network's configured average block time (12s when unset). It fails when
// the current block number cannot be fetched; there is no further fallback.
func (r *Resolver) tierAverage(ctx context.Context, network string, cfg ExplorerConfig, block uint64) (time.Time, error) {
	current, err := r.currentBlock(ctx, network)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.KindTransientNetwork, "temporal.tierAverage", err)
	}
	avgMs := cfg.AvgBlockTimeMs
	if avgMs <= 0 {
		avgMs = 12000
	}
	var delta int64
	if block >= current {
		delta = int64(block - current)
	} else {
		delta = -int64(current - block)
	}
	offset := time.Duration(delta*avgMs) * time.Millisecond
	return time.Now().Add(offset), nil
}

// Package chain maintains one retrying, caching JSON-RPC client per
// configured network, the way oracle-attesterd wraps ethclient.Client
// behind a narrow interface rather than exposing it directly.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"daoindexer/internal/errs"
)

// EthClient is the subset of ethclient.Client each Provider depends on,
// narrowed the way oracle-attesterd's EVMClient narrows its dependency.
type EthClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// NetworkConfig is the per-network topology a Provider is built from.
type NetworkConfig struct {
	Name             string
	NodeURL          string
	ExplorerAPIURL   string
	ExplorerKey      string
	AvgBlockTimeMs   int64
	SafetyBlockDepth uint64
}

// Provider is a cached, retrying handle onto one network's RPC endpoint.
type Provider struct {
	cfg    NetworkConfig
	client EthClient

	mu          sync.RWMutex
	headerCache map[uint64]*gethtypes.Header
	maxCached   int

	tipMu      sync.Mutex
	tipValue   uint64
	tipFetched time.Time
}

const (
	defaultMaxCachedHeaders = 4096
	tipCacheTTL             = 2 * time.Second
	maxAttempts             = 3
	perAttemptTimeout       = 5 * time.Second
)

// NewProvider dials endpoint and wraps it with retry/cache behavior.
func NewProvider(ctx context.Context, cfg NetworkConfig) (*Provider, error) {
	cli, err := ethclient.DialContext(ctx, cfg.NodeURL)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientNetwork, "chain.NewProvider", err)
	}
	return newProviderFromClient(cfg, cli), nil
}

func newProviderFromClient(cfg NetworkConfig, cli EthClient) *Provider {
	return &Provider{
		cfg:         cfg,
		client:      cli,
		headerCache: make(map[uint64]*gethtypes.Header),
		maxCached:   defaultMaxCachedHeaders,
	}
}

// Config exposes the provider's static network configuration.
func (p *Provider) Config() NetworkConfig { return p.cfg }

// Close releases the underlying RPC connection.
func (p *Provider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// GetBlockNumber returns the current chain tip, cached for tipCacheTTL.
func (p *Provider) GetBlockNumber(ctx context.Context) (uint64, error) {
	p.tipMu.Lock()
	if time.Since(p.tipFetched) < tipCacheTTL && p.tipFetched != (time.Time{}) {
		v := p.tipValue
		p.tipMu.Unlock()
		return v, nil
	}
	p.tipMu.Unlock()

	var tip uint64
	err := withRetry(ctx, func(ctx context.Context) error {
		n, err := p.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		tip = n
		return nil
	})
	if err != nil {
		return 0, classify("chain.GetBlockNumber", err)
	}

	p.tipMu.Lock()
	p.tipValue = tip
	p.tipFetched = time.Now()
	p.tipMu.Unlock()
	return tip, nil
}

// GetBlock returns the header for a block number, serving from the
// in-process cache when available.
func (p *Provider) GetBlock(ctx context.Context, number uint64) (*gethtypes.Header, error) {
	p.mu.RLock()
	if h, ok := p.headerCache[number]; ok {
		p.mu.RUnlock()
		return h, nil
	}
	p.mu.RUnlock()

	var header *gethtypes.Header
	err := withRetry(ctx, func(ctx context.Context) error {
		h, err := p.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	if err != nil {
		return nil, classify("chain.GetBlock", err)
	}
	if header == nil {
		return nil, errs.NotFound
	}

	p.mu.Lock()
	if len(p.headerCache) >= p.maxCached {
		for k := range p.headerCache {
			delete(p.headerCache, k)
			break
		}
	}
	p.headerCache[number] = header
	p.mu.Unlock()
	return header, nil
}

// FilterLogs runs an event filter query with retry.
func (p *Provider) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	var logs []gethtypes.Log
	err := withRetry(ctx, func(ctx context.Context) error {
		l, err := p.client.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	if err != nil {
		return nil, classify("chain.FilterLogs", err)
	}
	return logs, nil
}

// Call performs an ABI-typed eth_call against address at the given block
// (nil for latest), decoding the result into out via method's outputs.
func (p *Provider) Call(ctx context.Context, contractABI *abi.ABI, address common.Address, method string, atBlock *big.Int, out interface{}, args ...interface{}) error {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return errs.Wrap(errs.KindDecode, "chain.Call.pack", err)
	}

	var raw []byte
	callErr := withRetry(ctx, func(ctx context.Context) error {
		res, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &address, Data: data}, atBlock)
		if err != nil {
			return err
		}
		raw = res
		return nil
	})
	if callErr != nil {
		return classify(fmt.Sprintf("chain.Call(%s)", method), callErr)
	}

	if out == nil {
		return nil
	}
	if err := contractABI.UnpackIntoInterface(out, method, raw); err != nil {
		return errs.Wrap(errs.KindDecode, "chain.Call.unpack", err)
	}
	return nil
}

// withRetry runs fn up to maxAttempts times with exponential backoff,
// matching the escrow-gateway webhook dispatch idiom.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(backoffDuration(attempt)):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}

func backoffDuration(attempt int) time.Duration {
	d := time.Second * time.Duration(1<<uint(attempt-1))
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func classify(where string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ethereum.NotFound) {
		return errs.NotFound
	}
	return errs.Wrap(errs.KindRPCError, where, err)
}

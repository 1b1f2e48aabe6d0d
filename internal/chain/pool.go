package chain

import (
	"context"
	"fmt"
	"sync"

	"daoindexer/config"
	"daoindexer/internal/errs"
)

// Pool holds one Provider per configured network, dialed lazily on first
// use and kept for the process lifetime.
type Pool struct {
	mu        sync.Mutex
	providers map[string]*Provider
	configs   map[string]NetworkConfig
}

// NewPool builds a Pool from the loaded topology without dialing anything;
// dialing happens lazily in Provider so a misconfigured, unused network
// never blocks startup.
func NewPool(cfg *config.Config) *Pool {
	p := &Pool{
		providers: make(map[string]*Provider),
		configs:   make(map[string]NetworkConfig, len(cfg.Networks)),
	}
	for _, n := range cfg.Networks {
		p.configs[n.Name] = NetworkConfig{
			Name:             n.Name,
			NodeURL:          cfg.NodeURLs[n.Name],
			ExplorerAPIURL:   n.ExplorerAPIURL,
			ExplorerKey:      cfg.ExplorerKeys[n.Name],
			AvgBlockTimeMs:   n.AvgBlockTimeMs,
			SafetyBlockDepth: n.SafetyBlockDepth,
		}
	}
	return p
}

// Provider returns the dialed provider for network, dialing it on first
// request.
func (p *Pool) Provider(ctx context.Context, network string) (*Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.providers[network]; ok {
		return existing, nil
	}
	cfg, ok := p.configs[network]
	if !ok {
		return nil, errs.New(errs.KindBadConfig, "chain.Pool.Provider", fmt.Sprintf("unsupported network %q", network))
	}
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.providers[network] = provider
	return provider, nil
}

// NetworkConfig returns the static configuration for a network without
// dialing it.
func (p *Pool) NetworkConfig(network string) (NetworkConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg, ok := p.configs[network]
	return cfg, ok
}

// Close shuts down every dialed provider.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, provider := range p.providers {
		provider.Close()
	}
}

// Package ens resolves voter addresses to their ENS reverse record, the
// way the voter directory displays human-readable names instead of raw
// addresses.
package ens

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"daoindexer/internal/chain"
	chainabi "daoindexer/internal/chain/abi"
	"daoindexer/internal/store"
)

// mainnetRegistry is the canonical ENS registry-with-fallback address,
// deployed once and never migrated.
var mainnetRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const (
	lookupTimeout   = 5 * time.Second
	maxConcurrent   = 5
)

// Resolver performs ENS reverse lookups against a mainnet provider.
type Resolver struct {
	provider    *chain.Provider
	registryABI *gethabi.ABI
	resolverABI *gethabi.ABI
	registry    common.Address
}

// New builds a Resolver. provider must be connected to Ethereum mainnet,
// since the ENS registry only lives there.
func New(provider *chain.Provider) (*Resolver, error) {
	registryABI, err := chainabi.Get(chainabi.ENSRegistry)
	if err != nil {
		return nil, err
	}
	resolverABI, err := chainabi.Get(chainabi.ENSResolver)
	if err != nil {
		return nil, err
	}
	return &Resolver{provider: provider, registryABI: registryABI, resolverABI: resolverABI, registry: mainnetRegistry}, nil
}

// Lookup resolves address to its ENS name via the reverse registrar,
// verifying the forward record points back to address before trusting it.
func (r *Resolver) Lookup(ctx context.Context, address common.Address) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	node := reverseNode(address)

	var resolverAddr common.Address
	if err := r.provider.Call(ctx, r.registryABI, r.registry, "resolver", nil, &resolverAddr, node); err != nil {
		return "", err
	}
	if resolverAddr == (common.Address{}) {
		return "", nil
	}

	var name string
	if err := r.provider.Call(ctx, r.resolverABI, resolverAddr, "name", nil, &name, node); err != nil {
		return "", err
	}
	if name == "" {
		return "", nil
	}

	var forward common.Address
	fwdNode := namehash(name)
	var fwdResolver common.Address
	if err := r.provider.Call(ctx, r.registryABI, r.registry, "resolver", nil, &fwdResolver, fwdNode); err != nil || fwdResolver == (common.Address{}) {
		return "", nil
	}
	if err := r.provider.Call(ctx, r.resolverABI, fwdResolver, "addr", nil, &forward, fwdNode); err != nil {
		return "", nil
	}
	if forward != address {
		return "", nil
	}
	return name, nil
}

// RefreshVoters resolves ENS names for every address due for refresh,
// bounded to maxConcurrent outbound requests, and upserts the results.
// A panic in any single lookup is isolated so it cannot fail the batch.
func RefreshVoters(ctx context.Context, resolver *Resolver, voters *store.VoterStore, addresses []string, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	due, err := voters.DueForRefresh(ctx, addresses)
	if err != nil {
		log.Warn("ens: due_for_refresh failed", "err", err)
		return
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for _, addr := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(addr string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if p := recover(); p != nil {
					log.Debug("ens: lookup panicked, skipping", "address", addr, "panic", p)
				}
			}()

			name, err := resolver.Lookup(ctx, common.HexToAddress(addr))
			if err != nil {
				log.Debug("ens: lookup failed", "address", addr, "err", err)
				return
			}
			v := store.Voter{Address: strings.ToLower(addr), UpdatedAt: time.Now()}
			if name != "" {
				v.ENS = &name
			}
			if err := voters.Upsert(ctx, v); err != nil {
				log.Debug("ens: upsert failed", "address", addr, "err", err)
			}
		}(addr)
	}
	wg.Wait()
}

// namehash implements EIP-137 node hashing.
func namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := gethcrypto.Keccak256Hash([]byte(labels[i]))
		node = gethcrypto.Keccak256Hash(node[:], labelHash[:])
	}
	return node
}

// reverseNode computes the ENS reverse-registrar node for address, i.e.
// namehash("{lowercasehex}.addr.reverse").
func reverseNode(address common.Address) [32]byte {
	hexAddr := strings.ToLower(strings.TrimPrefix(address.Hex(), "0x"))
	return namehash(hexAddr + ".addr.reverse")
}

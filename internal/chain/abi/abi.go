// Package abi embeds the JSON ABI fragments for every supported governor
// family so callers never shell out to a network ABI registry.
package abi

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed OZGovernor.json
var ozGovernorJSON string

//go:embed AaveGovernorV2.json
var aaveGovernorV2JSON string

//go:embed AaveGovernorV3.json
var aaveGovernorV3JSON string

//go:embed ArbitrumTreasuryGovernor.json
var arbitrumTreasuryGovernorJSON string

//go:embed OptimismGovernorV6.json
var optimismGovernorV6JSON string

//go:embed OptimismApprovalModule.json
var optimismApprovalModuleJSON string

//go:embed ERC20.json
var erc20JSON string

//go:embed ERC20Votes.json
var erc20VotesJSON string

//go:embed ENSRegistry.json
var ensRegistryJSON string

//go:embed ENSResolver.json
var ensResolverJSON string

// Name identifies one of the embedded ABI fragments.
type Name string

const (
	OZGovernor               Name = "OZGovernor"
	AaveGovernorV2           Name = "AaveGovernorV2"
	AaveGovernorV3           Name = "AaveGovernorV3"
	ArbitrumTreasuryGovernor Name = "ArbitrumTreasuryGovernor"
	OptimismGovernorV6       Name = "OptimismGovernorV6"
	OptimismApprovalModule   Name = "OptimismApprovalModule"
	ERC20                    Name = "ERC20"
	ERC20Votes               Name = "ERC20Votes"
	ENSRegistry              Name = "ENSRegistry"
	ENSResolver              Name = "ENSResolver"
)

var raw = map[Name]string{
	OZGovernor:               ozGovernorJSON,
	AaveGovernorV2:           aaveGovernorV2JSON,
	AaveGovernorV3:           aaveGovernorV3JSON,
	ArbitrumTreasuryGovernor: arbitrumTreasuryGovernorJSON,
	OptimismGovernorV6:       optimismGovernorV6JSON,
	OptimismApprovalModule:   optimismApprovalModuleJSON,
	ERC20:                    erc20JSON,
	ERC20Votes:               erc20VotesJSON,
	ENSRegistry:              ensRegistryJSON,
	ENSResolver:              ensResolverJSON,
}

var (
	mu     sync.Mutex
	parsed = make(map[Name]*gethabi.ABI)
)

// Get parses (and caches) the embedded ABI fragment named by n.
func Get(n Name) (*gethabi.ABI, error) {
	mu.Lock()
	defer mu.Unlock()
	if a, ok := parsed[n]; ok {
		return a, nil
	}
	source, ok := raw[n]
	if !ok {
		return nil, fmt.Errorf("abi: unknown fragment %q", n)
	}
	a, err := gethabi.JSON(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("abi: parse %q: %w", n, err)
	}
	parsed[n] = &a
	return &a, nil
}

package indexer

// DefaultSpeedWindows gives sane [min, max] refresh_speed clamps per
// governor variant when a deployment's config does not override them.
// Block-based variants get wide windows sized to their typical block
// time; page-based sources (Snapshot, Discourse) are windowed in pages.
var DefaultSpeedWindows = map[string]Speed{
	"AaveV2Mainnet":      {Min: 1, Max: 1_000_000},
	"AaveV3Mainnet":      {Min: 1, Max: 1_000_000},
	"ArbitrumTreasury":   {Min: 1, Max: 10_000_000},
	"ArbitrumCore":       {Min: 1, Max: 10_000_000},
	"OptimismGovernorV6": {Min: 1, Max: 5_000_000},
	"Uniswap":            {Min: 1, Max: 1_000_000},
	"Snapshot":           {Min: 1, Max: 1},
	"Discourse":          {Min: 1, Max: 1},
}

// SpeedFor looks up the configured window for a variant, defaulting to a
// conservative [1, 1] single-step window for anything unrecognized.
func SpeedFor(variant string) Speed {
	if s, ok := DefaultSpeedWindows[variant]; ok {
		return s
	}
	return Speed{Min: 1, Max: 1}
}

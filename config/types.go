package config

// Network describes one EVM chain the chain provider pool can dial.
type Network struct {
	Name             string `toml:"Name"`
	NodeURLEnv       string `toml:"NodeURLEnv"`
	ExplorerAPIURL   string `toml:"ExplorerAPIURL"`
	ExplorerKeyEnv   string `toml:"ExplorerKeyEnv"`
	AvgBlockTimeMs   int64  `toml:"AvgBlockTimeMs"`
	SafetyBlockDepth uint64 `toml:"SafetyBlockDepth"`
}

// Governor describes one on-chain or off-chain governance venue.
type Governor struct {
	DAOSlug         string `toml:"DAOSlug"`
	Variant         string `toml:"Variant"`
	Network         string `toml:"Network"`
	Address         string `toml:"Address"`
	Type            string `toml:"Type"` // "Proposals", "Votes", or "Both"
	PortalURL       string `toml:"PortalURL"`
	MinRefreshSpeed uint64 `toml:"MinRefreshSpeed"`
	MaxRefreshSpeed uint64 `toml:"MaxRefreshSpeed"`

	// TokenAddress names the governance token's ERC20Votes contract, when
	// different from Address, so delegation/voting-power history can be
	// indexed alongside proposals. Empty skips that indexer entirely.
	TokenAddress string `toml:"TokenAddress"`
}

// SnapshotSpace binds a DAO to a Snapshot space id.
type SnapshotSpace struct {
	DAOSlug string `toml:"DAOSlug"`
	Space   string `toml:"Space"`
}

// DiscourseForum binds a DAO to a Discourse instance.
type DiscourseForum struct {
	DAOSlug     string `toml:"DAOSlug"`
	BaseURL     string `toml:"BaseURL"`
	Enabled     bool   `toml:"Enabled"`
	CategoryIDs []int  `toml:"CategoryIDs"`
}

// DAO is a top-level governance organization entry in the static topology.
type DAO struct {
	Slug        string `toml:"Slug"`
	DisplayName string `toml:"DisplayName"`
}

// Config is the static topology loaded from a TOML file and overlaid with
// environment variables for secrets and per-deployment knobs.
type Config struct {
	DAOs      []DAO            `toml:"DAOs"`
	Networks  []Network        `toml:"Networks"`
	Governors []Governor       `toml:"Governors"`
	Snapshot  []SnapshotSpace  `toml:"Snapshot"`
	Discourse []DiscourseForum `toml:"Discourse"`

	PollInterval string `toml:"PollInterval"`

	// ENSNetwork names the entry in Networks used for ENS reverse lookups;
	// the registry only lives on Ethereum mainnet.
	ENSNetwork string `toml:"ENSNetwork"`

	// Resolved at Load time from the environment, never from TOML.
	DatabaseURL                string
	EmbeddingSimilarityThresh  float64
	NodeURLs                   map[string]string
	ExplorerKeys               map[string]string
	AdminListenAddress         string
	OTLPEndpoint               string
	OTLPInsecure               bool
	OTLPHeaders                map[string]string
}

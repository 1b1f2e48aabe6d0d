package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	telemetry "daoindexer/observability/otel"
)

// DefaultEmbeddingSimilarityThreshold mirrors spec's EMBEDDING_SIMILARITY_THRESHOLD default.
const DefaultEmbeddingSimilarityThreshold = 0.70

// Load reads the static topology from path and overlays secrets/knobs from
// the environment. Missing required environment variables for a referenced
// network are treated as configuration bugs per the error handling design
// and reported back to the caller rather than read lazily at call sites.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.NodeURLs = make(map[string]string, len(cfg.Networks))
	cfg.ExplorerKeys = make(map[string]string, len(cfg.Networks))
	for _, n := range cfg.Networks {
		nodeURL := strings.TrimSpace(os.Getenv(n.NodeURLEnv))
		if nodeURL == "" {
			return nil, fmt.Errorf("config: network %q requires env var %s", n.Name, n.NodeURLEnv)
		}
		cfg.NodeURLs[n.Name] = nodeURL
		if n.ExplorerKeyEnv != "" {
			cfg.ExplorerKeys[n.Name] = strings.TrimSpace(os.Getenv(n.ExplorerKeyEnv))
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	cfg.EmbeddingSimilarityThresh = DefaultEmbeddingSimilarityThreshold
	if raw := strings.TrimSpace(os.Getenv("EMBEDDING_SIMILARITY_THRESHOLD")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("config: EMBEDDING_SIMILARITY_THRESHOLD: %w", err)
		}
		cfg.EmbeddingSimilarityThresh = v
	}

	cfg.AdminListenAddress = strings.TrimSpace(os.Getenv("ADMIN_LISTEN_ADDRESS"))
	if cfg.AdminListenAddress == "" {
		cfg.AdminListenAddress = ":9090"
	}

	cfg.OTLPEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	cfg.OTLPHeaders = telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = true
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.OTLPInsecure = parsed
		}
	}

	if strings.TrimSpace(cfg.PollInterval) == "" {
		cfg.PollInterval = "15s"
	}
	if strings.TrimSpace(cfg.ENSNetwork) == "" {
		cfg.ENSNetwork = "mainnet"
	}
	if _, err := cfg.PollIntervalDuration(); err != nil {
		return nil, fmt.Errorf("config: PollInterval: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PollIntervalDuration parses PollInterval as a time.Duration.
func (c *Config) PollIntervalDuration() (time.Duration, error) {
	return time.ParseDuration(c.PollInterval)
}

func (c *Config) validate() error {
	if len(c.DAOs) == 0 {
		return fmt.Errorf("config: at least one DAO must be configured")
	}
	daoSlugs := make(map[string]struct{}, len(c.DAOs))
	for _, d := range c.DAOs {
		if strings.TrimSpace(d.Slug) == "" {
			return fmt.Errorf("config: DAO entry missing Slug")
		}
		daoSlugs[d.Slug] = struct{}{}
	}
	for _, g := range c.Governors {
		if _, ok := daoSlugs[g.DAOSlug]; !ok {
			return fmt.Errorf("config: governor %q references unknown DAO %q", g.Variant, g.DAOSlug)
		}
		if _, ok := c.NodeURLs[g.Network]; !ok {
			return fmt.Errorf("config: governor %q references unconfigured network %q", g.Variant, g.Network)
		}
	}
	for _, s := range c.Snapshot {
		if _, ok := daoSlugs[s.DAOSlug]; !ok {
			return fmt.Errorf("config: snapshot space %q references unknown DAO %q", s.Space, s.DAOSlug)
		}
	}
	for _, f := range c.Discourse {
		if _, ok := daoSlugs[f.DAOSlug]; !ok {
			return fmt.Errorf("config: discourse forum %q references unknown DAO %q", f.BaseURL, f.DAOSlug)
		}
	}
	return nil
}

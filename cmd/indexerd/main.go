package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"daoindexer/config"
	"daoindexer/internal/adminserver"
	"daoindexer/internal/chain"
	"daoindexer/internal/indexer"
	"daoindexer/internal/indexer/discourse"
	"daoindexer/internal/indexer/onchain"
	"daoindexer/internal/indexer/snapshot"
	"daoindexer/internal/ipfs"
	"daoindexer/internal/ratelimit"
	"daoindexer/internal/registry"
	"daoindexer/internal/store"
	"daoindexer/internal/temporal"
	"daoindexer/observability/logging"
	telemetry "daoindexer/observability/otel"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the static topology TOML file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("indexerd: load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("DAOINDEXER_ENV"))
	logger := logging.Setup("indexerd", env)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "indexerd",
		Environment: env,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		Headers:     cfg.OTLPHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		panic(fmt.Sprintf("indexerd: init telemetry: %v", err))
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("indexerd: open database: %v", err))
	}
	if err := store.Migrate(db); err != nil {
		panic(fmt.Sprintf("indexerd: migrate: %v", err))
	}

	topology := store.NewTopologyStore(db)
	proposals := store.NewProposalStore(db)
	votes := store.NewVoteStore(db)
	delegations := store.NewDelegationStore(db)
	votingPower := store.NewVotingPowerStore(db)
	discourseStore := store.NewDiscourseStore(db)
	cursors := store.NewCursorStore(db)

	reg := registry.New(cfg)
	ctx := context.Background()
	if err := bootstrapTopology(ctx, cfg, reg, topology); err != nil {
		panic(fmt.Sprintf("indexerd: bootstrap topology: %v", err))
	}

	pool := chain.NewPool(cfg)
	defer pool.Close()

	networkNames := make([]string, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		networkNames = append(networkNames, n.Name)
	}
	resolver := temporal.New(pool, networkNames, logger)
	resolveTime := func(ctx context.Context, network string, block uint64) (int64, error) {
		t, err := resolver.Resolve(ctx, network, block)
		if err != nil {
			return 0, err
		}
		return t.Unix(), nil
	}

	ipfsFetcher := ipfs.New()
	snapshotDispatcher := ratelimit.NewDispatcher(ratelimit.Config{Logger: logger})
	discourseDispatcher := ratelimit.NewDispatcher(ratelimit.Config{Logger: logger})

	pollInterval, err := cfg.PollIntervalDuration()
	if err != nil {
		panic(fmt.Sprintf("indexerd: poll interval: %v", err))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	for _, g := range cfg.Governors {
		g := g
		daoID, ok := reg.DAO(g.DAOSlug)
		if !ok {
			logger.Error("indexerd: governor references unregistered dao, skipping", "variant", g.Variant, "dao", g.DAOSlug)
			continue
		}
		governorID, ok := reg.Governor(g.DAOSlug, g.Variant, g.Network)
		if !ok {
			logger.Error("indexerd: governor not registered, skipping", "variant", g.Variant, "dao", g.DAOSlug)
			continue
		}
		provider, err := pool.Provider(runCtx, g.Network)
		if err != nil {
			logger.Error("indexerd: dial provider failed, skipping governor", "variant", g.Variant, "network", g.Network, "err", err)
			continue
		}
		scanner, err := onchain.NewScanner(
			provider,
			onchain.GovernorKind(g.Variant),
			common.HexToAddress(g.Address),
			g.Network,
			governorID, daoID,
			resolveTime,
			ipfsFetcher,
			proposals, votes, votingPower,
			logger.With("variant", g.Variant, "dao", g.DAOSlug),
		)
		if err != nil {
			logger.Error("indexerd: build onchain scanner failed, skipping", "variant", g.Variant, "err", err)
			continue
		}
		speed := speedWindowFor(g.Variant, g.MinRefreshSpeed, g.MaxRefreshSpeed)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSource(runCtx, logger, indexer.Options{
				SourceID:     governorID,
				Variant:      g.Variant,
				Source:       "onchain",
				PollInterval: pollInterval,
				SpeedWindow:  speed,
				Store:        cursors,
				Scanner:      scanner,
				Log:          logger.With("variant", g.Variant, "dao", g.DAOSlug),
			})
		}()

		if strings.TrimSpace(g.TokenAddress) == "" {
			continue
		}
		tokenScanner, err := onchain.NewTokenScanner(
			provider,
			common.HexToAddress(g.TokenAddress),
			g.Network,
			daoID,
			resolveTime,
			delegations, votingPower,
			logger.With("variant", g.Variant, "dao", g.DAOSlug, "token", g.TokenAddress),
		)
		if err != nil {
			logger.Error("indexerd: build token scanner failed, skipping", "variant", g.Variant, "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSource(runCtx, logger, indexer.Options{
				SourceID:     governorID,
				Variant:      g.Variant + ":VotingPower",
				Source:       "onchain",
				PollInterval: pollInterval,
				SpeedWindow:  speed,
				Store:        cursors,
				Scanner:      tokenScanner,
				Log:          logger.With("variant", g.Variant, "dao", g.DAOSlug, "token", g.TokenAddress),
			})
		}()
	}

	for _, s := range cfg.Snapshot {
		s := s
		daoID, ok := reg.DAO(s.DAOSlug)
		if !ok {
			logger.Error("indexerd: snapshot space references unregistered dao, skipping", "space", s.Space)
			continue
		}
		governorVariant := "Snapshot:" + s.Space
		governorID, err := topology.EnsureGovernor(runCtx, daoID, governorVariant, "", s.Space, store.GovernorTypeBoth, "", "")
		if err != nil {
			logger.Error("indexerd: ensure snapshot governor failed, skipping", "space", s.Space, "err", err)
			continue
		}
		client := snapshot.NewClient("https://hub.snapshot.org/graphql", snapshotDispatcher)
		scanner := snapshot.NewScanner(client, s.Space, governorID, daoID, proposals, votes, logger.With("space", s.Space))
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSource(runCtx, logger, indexer.Options{
				SourceID:     governorID,
				Variant:      "Snapshot",
				Source:       "snapshot",
				PollInterval: pollInterval,
				SpeedWindow:  indexer.SpeedFor("Snapshot"),
				Store:        cursors,
				Scanner:      scanner,
				Log:          logger.With("space", s.Space),
			})
		}()
	}

	for _, f := range cfg.Discourse {
		f := f
		if !f.Enabled {
			continue
		}
		daoID, ok := reg.DAO(f.DAOSlug)
		if !ok {
			logger.Error("indexerd: discourse forum references unregistered dao, skipping", "forum", f.BaseURL)
			continue
		}
		if err := topology.EnsureDiscourseConfig(runCtx, daoID, f.BaseURL, f.Enabled, f.CategoryIDs); err != nil {
			logger.Error("indexerd: ensure discourse config failed, skipping", "forum", f.BaseURL, "err", err)
			continue
		}
		client := discourse.NewClient(f.BaseURL, discourseDispatcher)
		scanner := discourse.NewScanner(client, daoID, f.CategoryIDs, discourseStore, logger.With("forum", f.BaseURL))
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSource(runCtx, logger, indexer.Options{
				SourceID:     daoID,
				Variant:      "Discourse",
				Source:       "discourse",
				PollInterval: pollInterval,
				SpeedWindow:  indexer.SpeedFor("Discourse"),
				Store:        cursors,
				Scanner:      scanner,
				Log:          logger.With("forum", f.BaseURL),
			})
		}()
	}

	admin := adminserver.New(cfg.AdminListenAddress, "indexerd", logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := admin.Run(runCtx); err != nil {
			logger.Error("indexerd: admin server stopped with error", "err", err)
		}
	}()

	logger.Info("indexerd initialised and running",
		"governors", len(cfg.Governors), "snapshot_spaces", len(cfg.Snapshot), "discourse_forums", len(cfg.Discourse))

	<-runCtx.Done()
	logger.Info("indexerd shutting down")
	wg.Wait()
}

// runSource wraps indexer.Run with a restart-on-error loop so one source's
// transient failure never brings down the whole daemon.
func runSource(ctx context.Context, log *slog.Logger, opts indexer.Options) {
	for {
		err := indexer.Run(ctx, opts)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error("indexerd: source loop exited, restarting", "source", opts.Source, "variant", opts.Variant, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func speedWindowFor(variant string, min, max uint64) indexer.Speed {
	window := indexer.SpeedFor(variant)
	if min > 0 {
		window.Min = min
	}
	if max > 0 {
		window.Max = max
	}
	return window
}

func bootstrapTopology(ctx context.Context, cfg *config.Config, reg *registry.Registry, topology *store.TopologyStore) error {
	for _, d := range cfg.DAOs {
		id, err := topology.EnsureDAO(ctx, d.Slug, d.DisplayName)
		if err != nil {
			return err
		}
		reg.PutDAO(d.Slug, id)
	}
	for _, g := range cfg.Governors {
		daoID, ok := reg.DAO(g.DAOSlug)
		if !ok {
			return fmt.Errorf("indexerd: governor %q references unregistered dao %q", g.Variant, g.DAOSlug)
		}
		id, err := topology.EnsureGovernor(ctx, daoID, g.Variant, g.Network, g.Address, governorTypeOf(g.Type), g.PortalURL, g.TokenAddress)
		if err != nil {
			return err
		}
		reg.PutGovernor(g.DAOSlug, g.Variant, g.Network, id)
	}
	return nil
}

func governorTypeOf(raw string) store.GovernorType {
	switch raw {
	case string(store.GovernorTypeProposals), string(store.GovernorTypeVotes), string(store.GovernorTypeBoth):
		return store.GovernorType(raw)
	default:
		return store.GovernorTypeBoth
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"daoindexer/config"
	"daoindexer/internal/adminserver"
	"daoindexer/internal/chain"
	"daoindexer/internal/ens"
	"daoindexer/internal/grouper"
	"daoindexer/internal/registry"
	"daoindexer/internal/store"
	"daoindexer/observability/logging"
	telemetry "daoindexer/observability/otel"
)

const (
	groupingInterval = 2 * time.Minute
	ensInterval      = 30 * time.Minute
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the static topology TOML file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("grouperd: load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("DAOINDEXER_ENV"))
	logger := logging.Setup("grouperd", env)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "grouperd",
		Environment: env,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		Headers:     cfg.OTLPHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		panic(fmt.Sprintf("grouperd: init telemetry: %v", err))
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("grouperd: open database: %v", err))
	}
	if err := store.Migrate(db); err != nil {
		panic(fmt.Sprintf("grouperd: migrate: %v", err))
	}

	groupStore := store.NewGroupStore(db)
	voteStore := store.NewVoteStore(db)
	voterStore := store.NewVoterStore(db)

	reg := registry.New(cfg)
	topology := store.NewTopologyStore(db)
	for _, d := range cfg.DAOs {
		id, err := topology.EnsureDAO(context.Background(), d.Slug, d.DisplayName)
		if err != nil {
			panic(fmt.Sprintf("grouperd: ensure dao %q: %v", d.Slug, err))
		}
		reg.PutDAO(d.Slug, id)
	}

	g := grouper.New(groupStore, grouper.Unavailable{}, cfg.EmbeddingSimilarityThresh, logger)

	pool := chain.NewPool(cfg)
	defer pool.Close()
	var ensResolver *ens.Resolver
	if provider, err := pool.Provider(context.Background(), cfg.ENSNetwork); err == nil {
		if r, err := ens.New(provider); err == nil {
			ensResolver = r
		} else {
			logger.Warn("grouperd: ens resolver unavailable", "err", err)
		}
	} else {
		logger.Warn("grouperd: mainnet provider unavailable, ens refresh disabled", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin := adminserver.New(cfg.AdminListenAddress, "grouperd", logger)
	go func() {
		if err := admin.Run(ctx); err != nil {
			logger.Error("grouperd: admin server stopped with error", "err", err)
		}
	}()

	groupTicker := time.NewTicker(groupingInterval)
	defer groupTicker.Stop()
	ensTicker := time.NewTicker(ensInterval)
	defer ensTicker.Stop()

	logger.Info("grouperd initialised and running", "daos", len(cfg.DAOs))

	runGroupingPass(ctx, cfg, reg, groupStore, g, logger)
	if ensResolver != nil {
		runENSPass(ctx, voteStore, voterStore, ensResolver, logger)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("grouperd shutting down")
			return
		case <-groupTicker.C:
			runGroupingPass(ctx, cfg, reg, groupStore, g, logger)
		case <-ensTicker.C:
			if ensResolver != nil {
				runENSPass(ctx, voteStore, voterStore, ensResolver, logger)
			}
		}
	}
}

func runGroupingPass(ctx context.Context, cfg *config.Config, reg *registry.Registry, groupStore *store.GroupStore, g *grouper.Grouper, logger *slog.Logger) {
	for _, d := range cfg.DAOs {
		daoID, ok := reg.DAO(d.Slug)
		if !ok {
			continue
		}
		proposals, err := groupStore.UngroupedProposals(ctx, daoID)
		if err != nil {
			logger.Warn("grouperd: list ungrouped proposals failed", "dao", d.Slug, "err", err)
			continue
		}
		topics, err := groupStore.UngroupedTopics(ctx, daoID, daoID)
		if err != nil {
			logger.Warn("grouperd: list ungrouped topics failed", "dao", d.Slug, "err", err)
			continue
		}
		if len(proposals) == 0 && len(topics) == 0 {
			continue
		}
		if err := g.Run(ctx, d.Slug, daoID, topics, proposals); err != nil {
			logger.Warn("grouperd: grouping pass failed", "dao", d.Slug, "err", err)
			continue
		}
		logger.Info("grouperd: grouping pass complete", "dao", d.Slug, "proposals", len(proposals), "topics", len(topics))
	}
}

func runENSPass(ctx context.Context, voteStore *store.VoteStore, voterStore *store.VoterStore, resolver *ens.Resolver, logger *slog.Logger) {
	addresses, err := voteStore.DistinctVoterAddresses(ctx)
	if err != nil {
		logger.Warn("grouperd: list voter addresses failed", "err", err)
		return
	}
	if len(addresses) == 0 {
		return
	}
	ens.RefreshVoters(ctx, resolver, voterStore, addresses, logger)
	logger.Info("grouperd: ens refresh pass complete", "candidates", len(addresses))
}

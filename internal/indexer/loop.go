package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"daoindexer/observability/metrics"
)

// Result summarizes one scan pass. StickyIndex, when non-nil, is the index
// at which an active or pending item was created; the cursor must not
// advance past it so later state/score mutations are re-read on the next
// pass. RecordCount is used purely for metrics.
type Result struct {
	RecordCount int
	StickyIndex *uint64
}

// Scanner is implemented once per source family (on-chain proposals,
// on-chain votes, Snapshot, Discourse). Scan persists whatever it finds in
// [from, to] itself; the loop only tracks cursor bookkeeping.
type Scanner interface {
	Scan(ctx context.Context, from, to uint64) (Result, error)
	ChainTip(ctx context.Context) (uint64, error)
}

// Options configures a single source's cursor loop.
type Options struct {
	SourceID     uuid.UUID
	Variant      string
	Source       string // metrics label: "onchain", "snapshot", "discourse"
	PollInterval time.Duration
	SpeedWindow  Speed
	Store        CursorStore
	Scanner      Scanner
	Log          *slog.Logger
}

// Run executes the cursor protocol forever until ctx is cancelled:
// load cursor, compute [from, to] bounded by refresh_speed and chain tip,
// scan, persist the new cursor honoring the sticky-cursor invariant, and
// sleep the poll interval whenever the scan caught up to the tip.
func Run(ctx context.Context, opts Options) error {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := metrics.Indexer()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cursor, err := opts.Store.LoadCursor(ctx, opts.SourceID, opts.Variant)
		if err != nil {
			log.Error("indexer: load cursor failed", "source", opts.Source, "variant", opts.Variant, "err", err)
			if !sleepCtx(ctx, opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		if !cursor.Enabled {
			if !sleepCtx(ctx, opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		tip, err := opts.Scanner.ChainTip(ctx)
		if err != nil {
			log.Error("indexer: chain tip failed", "source", opts.Source, "err", err)
			m.RecordRPCError(opts.Source, "chain_tip")
			if !sleepCtx(ctx, opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		speed := opts.SpeedWindow.Clamp(cursor.RefreshSpeed)
		from := cursor.CurrentIndex
		to := from + speed
		if to > tip {
			to = tip
		}
		if to < from {
			to = from
		}

		start := time.Now()
		result, err := opts.Scanner.Scan(ctx, from, to)
		m.ObserveScan(opts.Source, time.Since(start))
		if err != nil {
			log.Error("indexer: scan failed", "source", opts.Source, "variant", opts.Variant, "from", from, "to", to, "err", err)
			m.RecordRPCError(opts.Source, "scan")
			if !sleepCtx(ctx, opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		m.RecordIndexed(opts.Source, opts.Variant, result.RecordCount)

		nextIndex := to
		if result.StickyIndex != nil && *result.StickyIndex < nextIndex {
			nextIndex = *result.StickyIndex
		}

		newCursor := Cursor{
			SourceID:      opts.SourceID,
			Variant:       opts.Variant,
			CurrentIndex:  nextIndex,
			RefreshSpeed:  speed,
			Enabled:       cursor.Enabled,
			LastUpdatedAt: time.Now(),
		}
		if err := opts.Store.StoreCursor(ctx, newCursor); err != nil {
			log.Error("indexer: store cursor failed", "source", opts.Source, "variant", opts.Variant, "err", err)
		}
		m.SetCursor(opts.Source+":"+opts.Variant, nextIndex, tip)

		if to == tip {
			if !sleepCtx(ctx, opts.PollInterval) {
				return ctx.Err()
			}
		}
	}
}

// sleepCtx sleeps for d or returns early (false) if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

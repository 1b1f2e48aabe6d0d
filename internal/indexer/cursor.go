package indexer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cursor is the per-source checkpoint persisted between scan passes.
type Cursor struct {
	SourceID      uuid.UUID
	Variant       string
	CurrentIndex  uint64
	RefreshSpeed  uint64
	Enabled       bool
	LastUpdatedAt time.Time
}

// Speed bounds the clamp range for refresh_speed, keyed per governor
// variant the way AaveV2Mainnet/ArbitrumTreasury/etc. each define their own
// [min, max] window.
type Speed struct {
	Min uint64
	Max uint64
}

// Clamp restricts speed to the [Min, Max] window.
func (s Speed) Clamp(speed uint64) uint64 {
	if speed < s.Min {
		return s.Min
	}
	if speed > s.Max {
		return s.Max
	}
	return speed
}

// CursorStore is the persistence dependency the cursor loop needs. The
// concrete implementation lives in the storage layer; the loop only
// depends on this narrow interface.
type CursorStore interface {
	LoadCursor(ctx context.Context, sourceID uuid.UUID, variant string) (Cursor, error)
	StoreCursor(ctx context.Context, c Cursor) error
}

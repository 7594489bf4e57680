package publish

import (
	"context"
	"fmt"
	"time"
)

// LedgerRecord is the latest published record for one symbol as read back
// from the external ledger.
type LedgerRecord struct {
	RoundID     int64
	Price       int64
	Timestamp   time.Time
	Attestation []byte
	SourceSetID int64
}

// LedgerReader reads the latest published record per symbol. Used at
// hydration and at conflict recovery. A missing record returns (nil, nil).
type LedgerReader interface {
	GetLatest(ctx context.Context, symbol string) (*LedgerRecord, error)
}

// LedgerWriter is the sole on-chain write path. Submitting the same
// (symbol, round) twice is rejected by the ledger.
type LedgerWriter interface {
	Update(ctx context.Context, symbol string, roundID, price int64, timestamp time.Time, attestation []byte, sourceSetID int64) (string, error)
}

// PublishError reports a publish attempt that failed after the one-shot
// resync and retry. State is left unchanged; the next tick retries from
// the unconfirmed state.
type PublishError struct {
	Symbol  string
	RoundID int64
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s round %d: %v", e.Symbol, e.RoundID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Package publish implements the per-symbol publish-gating state machine:
// threshold/hysteresis confirmation, minimum publish interval, a sliding
// rate cap, and crash-safe round resynchronization against the ledger.
package publish

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/neofeeds/internal/aggregate"
	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/metrics"
	"github.com/R3E-Network/neofeeds/pkg/logging"
)

// rateWindow is the sliding window over which MaxPerMinute is enforced.
const rateWindow = time.Minute

// Outcome describes what the gate decided for one tick.
type Outcome string

const (
	OutcomeSkippedInterval Outcome = "skipped_interval"
	OutcomeSkippedRate     Outcome = "skipped_rate"
	OutcomeBelowThreshold  Outcome = "below_threshold"
	OutcomePendingSet      Outcome = "pending_set"
	OutcomePendingCleared  Outcome = "pending_cleared"
	OutcomePublished       Outcome = "published"
	OutcomeFailed          Outcome = "failed"
)

// Result reports the gate decision for one evaluation.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	ChangeBps int64   `json:"change_bps"`
	RoundID   int64   `json:"round_id,omitempty"`
	TxID      string  `json:"tx_id,omitempty"`
}

// Engine drives the gating decision for every symbol. The per-symbol
// State is the only shared mutable data; each symbol's evaluations
// serialize on its own lock.
type Engine struct {
	policy      config.PublishPolicyConfig
	reader      LedgerReader
	writer      LedgerWriter
	attestation []byte
	log         *logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	mu     sync.RWMutex
	states map[string]*State
}

// NewEngine constructs a gating engine. The attestation hash is captured
// once and bound to every publish for the process lifetime.
func NewEngine(policy config.PublishPolicyConfig, reader LedgerReader, writer LedgerWriter, attestation []byte, log *logging.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		policy:      policy,
		reader:      reader,
		writer:      writer,
		attestation: attestation,
		log:         log,
		metrics:     m,
		now:         time.Now,
		states:      make(map[string]*State),
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Policy returns the active publish policy.
func (e *Engine) Policy() config.PublishPolicyConfig {
	return e.policy
}

func (e *Engine) state(symbol string) *State {
	e.mu.RLock()
	st := e.states[symbol]
	e.mu.RUnlock()
	if st != nil {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st = e.states[symbol]; st == nil {
		st = &State{}
		e.states[symbol] = st
	}
	return st
}

// Hydrate seeds each symbol's state from the ledger's latest record.
// Missing records are not errors; the symbol simply starts fresh. A read
// failure degrades the same way: the symbol starts fresh and the resync
// path adopts the ledger's round on the first publish conflict. Running
// Hydrate twice against the same ledger snapshot yields identical state.
func (e *Engine) Hydrate(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		record, err := e.reader.GetLatest(ctx, symbol)
		if err != nil {
			e.log.WithError(err).WithField("symbol", symbol).Warn("hydrate read failed, starting fresh")
			e.state(symbol)
			continue
		}

		st := e.state(symbol)
		st.mu.Lock()
		if record != nil {
			st.LastRoundID = record.RoundID
			st.LastPublishedPrice = record.Price
			st.LastPublishedAt = record.Timestamp
			e.log.WithFields(map[string]interface{}{
				"symbol": symbol,
				"round":  record.RoundID,
				"price":  record.Price,
			}).Info("hydrated publish state from ledger")
		}
		st.mu.Unlock()
	}
}

// Evaluate runs one gating pass for a fresh aggregated price. It mutates
// the symbol's state only on a confirmed successful publish.
func (e *Engine) Evaluate(ctx context.Context, price *aggregate.AggregatedPrice) (Result, error) {
	st := e.state(price.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := e.now()

	// Interval guard.
	if !st.LastPublishedAt.IsZero() && now.Sub(st.LastPublishedAt) < e.policy.MinInterval {
		return e.decide(price.Symbol, Result{Outcome: OutcomeSkippedInterval}), nil
	}

	// Sliding-window rate cap.
	st.pruneWindow(now, rateWindow)
	if len(st.RecentPublishes) >= e.policy.MaxPerMinute {
		return e.decide(price.Symbol, Result{Outcome: OutcomeSkippedRate}), nil
	}

	// Change magnitude against the last published baseline. No prior
	// publish forces an unconditional first publish.
	if st.LastPublishedPrice > 0 {
		change := changeBps(price.Price, st.LastPublishedPrice)

		if st.PendingSince.IsZero() {
			if change < int64(e.policy.ThresholdBps) {
				return e.decide(price.Symbol, Result{Outcome: OutcomeBelowThreshold, ChangeBps: change}), nil
			}
			// First crossing: require the next observation to confirm
			// before anchoring, so a single-sample spike never publishes.
			st.PendingSince = now
			return e.decide(price.Symbol, Result{Outcome: OutcomePendingSet, ChangeBps: change}), nil
		}

		// Confirmation stage: the current observation must still exceed
		// the (lower) hysteresis bar against the same baseline.
		if change < int64(e.policy.HysteresisBps) {
			st.PendingSince = time.Time{}
			return e.decide(price.Symbol, Result{Outcome: OutcomePendingCleared, ChangeBps: change}), nil
		}
		st.PendingSince = time.Time{}

		return e.publish(ctx, st, price, now, change)
	}

	st.PendingSince = time.Time{}
	return e.publish(ctx, st, price, now, 0)
}

// publish anchors the price at the next round id, with one resync-and-retry
// on failure. Called with the symbol's state lock held.
func (e *Engine) publish(ctx context.Context, st *State, price *aggregate.AggregatedPrice, now time.Time, change int64) (Result, error) {
	nextRound := st.LastRoundID + 1
	if nextRound < 1 {
		nextRound = 1
	}

	txID, err := e.writer.Update(ctx, price.Symbol, nextRound, price.Price, price.Timestamp, e.attestation, price.SourceSetID)
	if err != nil {
		e.log.WithError(err).WithFields(map[string]interface{}{
			"symbol": price.Symbol,
			"round":  nextRound,
		}).Warn("publish failed, resyncing round from ledger")
		if e.metrics != nil {
			e.metrics.Resyncs.Inc()
		}

		// One resynchronization: adopt the ledger's round if it moved
		// past ours, then retry exactly once. The adopted round is
		// committed only if the retry succeeds.
		if record, rerr := e.reader.GetLatest(ctx, price.Symbol); rerr == nil && record != nil && record.RoundID > st.LastRoundID {
			nextRound = record.RoundID + 1
		}

		txID, err = e.writer.Update(ctx, price.Symbol, nextRound, price.Price, price.Timestamp, e.attestation, price.SourceSetID)
		if err != nil {
			if e.metrics != nil {
				e.metrics.PublishFailures.WithLabelValues(price.Symbol).Inc()
			}
			return e.decide(price.Symbol, Result{Outcome: OutcomeFailed, ChangeBps: change}), &PublishError{Symbol: price.Symbol, RoundID: nextRound, Err: err}
		}
	}

	// Confirmed success: commit the state transition atomically under the
	// symbol lock.
	st.LastRoundID = nextRound
	st.LastPublishedPrice = price.Price
	st.LastPublishedAt = now
	st.RecentPublishes = append(st.RecentPublishes, now)
	st.pruneWindow(now, rateWindow)

	if e.metrics != nil {
		e.metrics.Publishes.WithLabelValues(price.Symbol).Inc()
		e.metrics.LastRound.WithLabelValues(price.Symbol).Set(float64(nextRound))
		e.metrics.LastPrice.WithLabelValues(price.Symbol).Set(float64(price.Price))
	}

	e.log.WithFields(map[string]interface{}{
		"symbol": price.Symbol,
		"round":  nextRound,
		"price":  price.Price,
		"tx":     txID,
	}).Info("published price round")

	return e.decide(price.Symbol, Result{
		Outcome:   OutcomePublished,
		ChangeBps: change,
		RoundID:   nextRound,
		TxID:      txID,
	}), nil
}

func (e *Engine) decide(symbol string, r Result) Result {
	if e.metrics != nil {
		e.metrics.GateDecisions.WithLabelValues(symbol, string(r.Outcome)).Inc()
	}
	return r
}

// Snapshots returns a copy of every symbol's gating state.
func (e *Engine) Snapshots() []Snapshot {
	e.mu.RLock()
	symbols := make([]string, 0, len(e.states))
	for symbol := range e.states {
		symbols = append(symbols, symbol)
	}
	e.mu.RUnlock()

	now := e.now()
	snaps := make([]Snapshot, 0, len(symbols))
	for _, symbol := range symbols {
		snaps = append(snaps, e.state(symbol).snapshot(symbol, now, rateWindow))
	}
	return snaps
}

// Snapshot returns one symbol's gating state, or false if the symbol has
// never been observed.
func (e *Engine) Snapshot(symbol string) (Snapshot, bool) {
	e.mu.RLock()
	st := e.states[symbol]
	e.mu.RUnlock()
	if st == nil {
		return Snapshot{}, false
	}
	return st.snapshot(symbol, e.now(), rateWindow), true
}

// changeBps computes the relative change in basis points between the new
// price and the last published baseline.
func changeBps(newPrice, lastPrice int64) int64 {
	diff := newPrice - lastPrice
	if diff < 0 {
		diff = -diff
	}
	return diff * 10000 / lastPrice
}

package publish

import (
	"sync"
	"time"
)

// State is the long-lived mutable record for one symbol. It is hydrated
// from the ledger at startup and mutated only by the gating engine, under
// the per-symbol lock.
type State struct {
	mu sync.Mutex

	// LastRoundID mirrors the ledger's monotonic round counter.
	LastRoundID        int64
	LastPublishedPrice int64
	LastPublishedAt    time.Time

	// PendingSince marks a threshold crossing awaiting confirmation.
	// Zero when no crossing is pending.
	PendingSince time.Time

	// RecentPublishes holds publish times inside the rate-cap window.
	RecentPublishes []time.Time
}

// pruneWindow drops publish times older than the sliding rate window.
func (s *State) pruneWindow(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := s.RecentPublishes[:0]
	for _, t := range s.RecentPublishes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.RecentPublishes = kept
}

// Snapshot is a copy of one symbol's gating state for observability.
type Snapshot struct {
	Symbol             string    `json:"symbol"`
	LastRoundID        int64     `json:"last_round_id"`
	LastPublishedPrice int64     `json:"last_published_price"`
	LastPublishedAt    time.Time `json:"last_published_at"`
	Pending            bool      `json:"pending"`
	PendingSince       time.Time `json:"pending_since,omitempty"`
	PublishesInWindow  int       `json:"publishes_in_window"`
}

func (s *State) snapshot(symbol string, now time.Time, window time.Duration) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneWindow(now, window)
	return Snapshot{
		Symbol:             symbol,
		LastRoundID:        s.LastRoundID,
		LastPublishedPrice: s.LastPublishedPrice,
		LastPublishedAt:    s.LastPublishedAt,
		Pending:            !s.PendingSince.IsZero(),
		PendingSince:       s.PendingSince,
		PublishesInWindow:  len(s.RecentPublishes),
	}
}

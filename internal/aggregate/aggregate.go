// Package aggregate combines per-source observations into a single
// weighted price per feed.
package aggregate

import (
	"fmt"
	"time"

	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/source"
)

// AggregatedPrice is the output of one aggregation pass for one feed.
// It is produced each tick and consumed immediately by the gating engine.
type AggregatedPrice struct {
	Symbol    string    `json:"symbol"`
	Price     int64     `json:"price"` // fixed-point at Decimals
	Decimals  int       `json:"decimals"`
	Timestamp time.Time `json:"timestamp"`
	// ContributingSourceIDs lists the sources that produced a usable
	// observation, in source-declaration order.
	ContributingSourceIDs []string `json:"contributing_source_ids"`
	SourceSetID           int64    `json:"source_set_id"`
}

// InsufficientSourcesError reports a failed quorum for one feed in one tick.
// The tick is skipped; aggregation never falls back to a stale or fabricated
// value.
type InsufficientSourcesError struct {
	Symbol string
	Got    int
	Want   int
}

func (e *InsufficientSourcesError) Error() string {
	return fmt.Sprintf("insufficient sources for %s: got %d, want %d", e.Symbol, e.Got, e.Want)
}

// Aggregate drops errored observations, enforces the feed's quorum and
// combines the remainder using the feed's configured combination function.
func Aggregate(feed *config.FeedConfig, observations []source.Observation) (*AggregatedPrice, error) {
	ok := make([]source.Observation, 0, len(observations))
	ids := make([]string, 0, len(observations))
	for _, obs := range observations {
		if obs.Err != nil || obs.Price <= 0 {
			continue
		}
		ok = append(ok, obs)
		ids = append(ids, obs.SourceID)
	}

	quorum := feed.MinSources
	if quorum <= 0 {
		quorum = 1
	}
	if len(ok) < quorum {
		return nil, &InsufficientSourcesError{Symbol: feed.ID, Got: len(ok), Want: quorum}
	}

	combiner := CombinerFor(feed.Aggregation)
	price := combiner(ok)
	if price <= 0 {
		return nil, &InsufficientSourcesError{Symbol: feed.ID, Got: 0, Want: quorum}
	}

	decimals := feed.Decimals
	if decimals <= 0 {
		decimals = 8
	}

	return &AggregatedPrice{
		Symbol:                feed.ID,
		Price:                 price,
		Decimals:              decimals,
		Timestamp:             time.Now(),
		ContributingSourceIDs: ids,
		SourceSetID:           SourceSetID(ids),
	}, nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/R3E-Network/neofeeds/internal/aggregate"
	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/metrics"
	"github.com/R3E-Network/neofeeds/internal/publish"
	"github.com/R3E-Network/neofeeds/internal/source"
	"github.com/R3E-Network/neofeeds/pkg/logging"
)

type memLedger struct {
	mu      sync.Mutex
	records map[string]*publish.LedgerRecord
	updates int
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]*publish.LedgerRecord)}
}

func (l *memLedger) GetLatest(_ context.Context, symbol string) (*publish.LedgerRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[symbol]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (l *memLedger) Update(_ context.Context, symbol string, roundID, price int64, timestamp time.Time, attestation []byte, sourceSetID int64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing := l.records[symbol]; existing != nil && roundID <= existing.RoundID {
		return "", fmt.Errorf("round %d already anchored for %s", roundID, symbol)
	}
	l.updates++
	l.records[symbol] = &publish.LedgerRecord{
		RoundID:     roundID,
		Price:       price,
		Timestamp:   timestamp,
		Attestation: attestation,
		SourceSetID: sourceSetID,
	}
	return fmt.Sprintf("0xtx%04d", l.updates), nil
}

type fetchFunc func(ctx context.Context, feed *config.FeedConfig, src *config.SourceConfig) source.Observation

func (f fetchFunc) Fetch(ctx context.Context, feed *config.FeedConfig, src *config.SourceConfig) source.Observation {
	return f(ctx, feed, src)
}

func testConfig() *config.FeedsConfig {
	cfg := &config.FeedsConfig{
		Sources: []config.SourceConfig{
			{ID: "alpha", URL: "https://alpha.example/{pair}", JSONPath: "price"},
			{ID: "beta", URL: "https://beta.example/{pair}", JSONPath: "price"},
		},
		Feeds: []config.FeedConfig{
			{ID: "BTC-USD", Sources: []string{"alpha", "beta"}, Enabled: true},
		},
		UpdateInterval: time.Hour,
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func staticFetcher(price int64) fetchFunc {
	return func(_ context.Context, _ *config.FeedConfig, src *config.SourceConfig) source.Observation {
		return source.Observation{SourceID: src.ID, Price: price, Weight: src.Weight, FetchedAt: time.Now()}
	}
}

func newTestScheduler(t *testing.T, cfg *config.FeedsConfig, fetcher PriceFetcher, ledger *memLedger) *Scheduler {
	t.Helper()
	log := logging.New("scheduler-test", "panic", "text")
	engine := publish.NewEngine(cfg.PublishPolicy, ledger, ledger, []byte("attest"), log, metrics.New())
	return New(cfg, fetcher, engine, log, metrics.New())
}

func TestRunOncePublishesFirstRound(t *testing.T) {
	cfg := testConfig()
	ledger := newMemLedger()
	s := newTestScheduler(t, cfg, staticFetcher(6500000000000), ledger)

	result, err := s.RunOnce(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Outcome != publish.OutcomePublished {
		t.Fatalf("outcome = %s, want published", result.Outcome)
	}
	if result.RoundID != 1 {
		t.Errorf("round = %d, want 1", result.RoundID)
	}

	record, _ := ledger.GetLatest(context.Background(), "BTC-USD")
	if record == nil || record.Price != 6500000000000 {
		t.Errorf("ledger record = %+v", record)
	}

	price, ok := s.LatestPrice("BTC-USD")
	if !ok {
		t.Fatal("latest price missing after tick")
	}
	if len(price.ContributingSourceIDs) != 2 {
		t.Errorf("contributing sources = %v", price.ContributingSourceIDs)
	}
}

func TestRunOnceUnknownFeed(t *testing.T) {
	s := newTestScheduler(t, testConfig(), staticFetcher(100), newMemLedger())
	if _, err := s.RunOnce(context.Background(), "DOGE-USD"); !errors.Is(err, ErrUnknownFeed) {
		t.Errorf("err = %v, want ErrUnknownFeed", err)
	}
}

func TestTickQuorumNotMet(t *testing.T) {
	cfg := testConfig()
	cfg.Feeds[0].MinSources = 2
	ledger := newMemLedger()

	failing := fetchFunc(func(_ context.Context, _ *config.FeedConfig, src *config.SourceConfig) source.Observation {
		if src.ID == "beta" {
			return source.Observation{SourceID: src.ID, Err: fmt.Errorf("connection refused")}
		}
		return source.Observation{SourceID: src.ID, Price: 100, Weight: 1}
	})

	s := newTestScheduler(t, cfg, failing, ledger)
	_, err := s.RunOnce(context.Background(), "BTC-USD")

	var insufficient *aggregate.InsufficientSourcesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientSourcesError", err)
	}
	if insufficient.Got != 1 || insufficient.Want != 2 {
		t.Errorf("got %d want %d", insufficient.Got, insufficient.Want)
	}
	if record, _ := ledger.GetLatest(context.Background(), "BTC-USD"); record != nil {
		t.Errorf("skipped tick must not publish, got %+v", record)
	}
}

func TestInFlightGuard(t *testing.T) {
	cfg := testConfig()
	release := make(chan struct{})
	started := make(chan struct{}, 4)

	blocking := fetchFunc(func(_ context.Context, _ *config.FeedConfig, src *config.SourceConfig) source.Observation {
		started <- struct{}{}
		<-release
		return source.Observation{SourceID: src.ID, Price: 100, Weight: 1}
	})

	s := newTestScheduler(t, cfg, blocking, newMemLedger())
	feed := cfg.GetFeed("BTC-USD")

	done := make(chan error, 1)
	go func() {
		_, err := s.Tick(context.Background(), feed)
		done <- err
	}()

	<-started
	if _, err := s.Tick(context.Background(), feed); !errors.Is(err, ErrTickInFlight) {
		t.Errorf("err = %v, want ErrTickInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}

	// Guard is released after the pass finishes.
	if _, err := s.Tick(context.Background(), feed); err != nil {
		t.Errorf("tick after release: %v", err)
	}
}

func TestStartHydratesFromLedger(t *testing.T) {
	cfg := testConfig()
	ledger := newMemLedger()
	ledger.records["BTC-USD"] = &publish.LedgerRecord{
		RoundID:     4,
		Price:       6400000000000,
		Timestamp:   time.Now().Add(-time.Hour),
		SourceSetID: 1,
	}

	s := newTestScheduler(t, cfg, staticFetcher(6500000000000), ledger)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	// The hydrated baseline makes the 1.5% move a threshold crossing, so
	// the first pass arms confirmation and the second publishes.
	result, err := s.RunOnce(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Outcome != publish.OutcomePendingSet {
		t.Fatalf("outcome = %s, want pending_set", result.Outcome)
	}

	result, err = s.RunOnce(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("RunOnce confirm: %v", err)
	}
	if result.Outcome != publish.OutcomePublished {
		t.Fatalf("outcome = %s, want published", result.Outcome)
	}
	if result.RoundID != 5 {
		t.Errorf("round = %d, want 5 after hydration", result.RoundID)
	}
}

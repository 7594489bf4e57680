// Package scheduler drives the fetch-aggregate-evaluate loop for every
// enabled feed on its configured interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/neofeeds/internal/aggregate"
	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/metrics"
	"github.com/R3E-Network/neofeeds/internal/publish"
	"github.com/R3E-Network/neofeeds/internal/source"
	"github.com/R3E-Network/neofeeds/pkg/logging"
)

// ErrTickInFlight is returned when a feed's previous pass has not finished.
// Ticks never stack; the next scheduled pass covers the skipped one.
var ErrTickInFlight = errors.New("tick already in flight")

// ErrUnknownFeed is returned by RunOnce for a feed id not in the config.
var ErrUnknownFeed = errors.New("unknown feed")

// PriceFetcher retrieves one observation from one source.
type PriceFetcher interface {
	Fetch(ctx context.Context, feed *config.FeedConfig, src *config.SourceConfig) source.Observation
}

// Scheduler owns the cron entries and the per-feed tick pipeline.
type Scheduler struct {
	cfg     *config.FeedsConfig
	fetcher PriceFetcher
	engine  *publish.Engine
	log     *logging.Logger
	metrics *metrics.Metrics
	cron    *cron.Cron

	mu       sync.Mutex
	inFlight map[string]bool

	priceMu sync.RWMutex
	latest  map[string]*aggregate.AggregatedPrice
}

// New creates a scheduler. Start must be called before ticks run.
func New(cfg *config.FeedsConfig, fetcher PriceFetcher, engine *publish.Engine, log *logging.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		fetcher:  fetcher,
		engine:   engine,
		log:      log,
		metrics:  m,
		cron:     cron.New(),
		inFlight: make(map[string]bool),
		latest:   make(map[string]*aggregate.AggregatedPrice),
	}
}

// Start hydrates gating state from the ledger and then schedules one cron
// entry per enabled feed at the feed's update interval.
func (s *Scheduler) Start(ctx context.Context) error {
	feeds := s.cfg.GetEnabledFeeds()

	symbols := make([]string, 0, len(feeds))
	for _, feed := range feeds {
		symbols = append(symbols, feed.ID)
	}
	s.engine.Hydrate(ctx, symbols)

	for i := range feeds {
		feed := &feeds[i]
		interval := feed.UpdateInterval
		if interval <= 0 {
			interval = s.cfg.UpdateInterval
		}
		spec := fmt.Sprintf("@every %s", interval)
		if _, err := s.cron.AddFunc(spec, func() {
			if _, err := s.Tick(context.Background(), feed); err != nil && !errors.Is(err, ErrTickInFlight) {
				s.log.WithError(err).WithField("feed", feed.ID).Warn("tick failed")
			}
		}); err != nil {
			return fmt.Errorf("schedule feed %s: %w", feed.ID, err)
		}
	}

	s.cron.Start()
	s.log.WithField("feeds", len(feeds)).Info("scheduler started")
	return nil
}

// Stop halts scheduling and waits for running ticks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunOnce forces one immediate pass for a feed, bypassing its schedule but
// not the gating policy.
func (s *Scheduler) RunOnce(ctx context.Context, feedID string) (publish.Result, error) {
	feed := s.cfg.GetFeed(feedID)
	if feed == nil {
		return publish.Result{}, fmt.Errorf("%w: %s", ErrUnknownFeed, feedID)
	}
	return s.Tick(ctx, feed)
}

// Tick runs one fetch-aggregate-evaluate pass for a feed.
func (s *Scheduler) Tick(ctx context.Context, feed *config.FeedConfig) (publish.Result, error) {
	if !s.acquire(feed.ID) {
		return publish.Result{}, ErrTickInFlight
	}
	defer s.release(feed.ID)

	observations := s.fetchAll(ctx, feed)

	price, err := aggregate.Aggregate(feed, observations)
	if err != nil {
		var insufficient *aggregate.InsufficientSourcesError
		if errors.As(err, &insufficient) {
			if s.metrics != nil {
				s.metrics.AggregateSkips.WithLabelValues(feed.ID).Inc()
			}
			s.log.WithFields(map[string]interface{}{
				"feed": feed.ID,
				"got":  insufficient.Got,
				"want": insufficient.Want,
			}).Warn("skipping tick, quorum not met")
		}
		return publish.Result{}, err
	}

	s.priceMu.Lock()
	s.latest[feed.ID] = price
	s.priceMu.Unlock()

	return s.engine.Evaluate(ctx, price)
}

// fetchAll queries every configured source for the feed concurrently.
func (s *Scheduler) fetchAll(ctx context.Context, feed *config.FeedConfig) []source.Observation {
	sources := feed.Sources
	observations := make([]source.Observation, len(sources))

	var wg sync.WaitGroup
	for i, sourceID := range sources {
		src := s.cfg.GetSource(sourceID)
		if src == nil {
			observations[i] = source.Observation{SourceID: sourceID, Err: fmt.Errorf("source %s unavailable", sourceID)}
			continue
		}

		wg.Add(1)
		go func(i int, src *config.SourceConfig) {
			defer wg.Done()
			started := time.Now()
			obs := s.fetcher.Fetch(ctx, feed, src)
			if s.metrics != nil {
				s.metrics.FetchDuration.WithLabelValues(src.ID).Observe(time.Since(started).Seconds())
				if obs.Err != nil {
					s.metrics.FetchErrors.WithLabelValues(src.ID).Inc()
				}
			}
			if obs.Err != nil {
				s.log.WithError(obs.Err).WithFields(map[string]interface{}{
					"feed":   feed.ID,
					"source": src.ID,
				}).Debug("source fetch failed")
			}
			observations[i] = obs
		}(i, src)
	}
	wg.Wait()

	return observations
}

// LatestPrice returns the most recent aggregated price for a symbol.
func (s *Scheduler) LatestPrice(symbol string) (*aggregate.AggregatedPrice, bool) {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	price, ok := s.latest[symbol]
	return price, ok
}

// LatestPrices returns the most recent aggregated price per symbol.
func (s *Scheduler) LatestPrices() []*aggregate.AggregatedPrice {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	prices := make([]*aggregate.AggregatedPrice, 0, len(s.latest))
	for _, price := range s.latest {
		prices = append(prices, price)
	}
	return prices
}

func (s *Scheduler) acquire(feedID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[feedID] {
		return false
	}
	s.inFlight[feedID] = true
	return true
}

func (s *Scheduler) release(feedID string) {
	s.mu.Lock()
	delete(s.inFlight, feedID)
	s.mu.Unlock()
}

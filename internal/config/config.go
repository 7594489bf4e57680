// Package config defines the declarative source/feed configuration model
// for the price feed aggregation engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DataType defines the type of data a feed provides.
type DataType string

const (
	DataTypePrice  DataType = "price"  // Cryptocurrency/forex prices
	DataTypeNumber DataType = "number" // Generic numeric data
	DataTypeString DataType = "string" // Text data
)

// Aggregation selects the combination function applied over source observations.
type Aggregation string

const (
	AggregationWeightedMean   Aggregation = "weighted_mean"
	AggregationWeightedMedian Aggregation = "weighted_median"
	AggregationTrimmedMean    Aggregation = "trimmed_mean"
)

// SourceConfig defines a data source configuration.
type SourceConfig struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	URL      string            `json:"url" yaml:"url"`             // URL template with {pair}, {base}, {quote} placeholders
	JSONPath string            `json:"json_path" yaml:"json_path"` // gjson path to extract the value
	Weight   int               `json:"weight" yaml:"weight"`       // Weight for aggregation (default: 1)
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"` // Request timeout (default: 10s)

	// PairTemplate optionally defines how to construct the {pair} placeholder
	// from the feed base/quote (after applying overrides below).
	// Example: "{base}{quote}" (Binance), "{base}-{quote}" (OKX).
	PairTemplate string `json:"pair_template,omitempty" yaml:"pair_template,omitempty"`
	// BaseOverride and QuoteOverride optionally override the feed base/quote symbols
	// for this particular source (e.g., USD -> USDT on exchanges).
	BaseOverride  string `json:"base_override,omitempty" yaml:"base_override,omitempty"`
	QuoteOverride string `json:"quote_override,omitempty" yaml:"quote_override,omitempty"`
}

// FeedConfig defines a data feed configuration.
type FeedConfig struct {
	ID             string        `json:"id" yaml:"id"`                         // Feed identifier (e.g., "BTC-USD")
	Name           string        `json:"name,omitempty" yaml:"name,omitempty"` // Human-readable name
	DataType       DataType      `json:"data_type" yaml:"data_type"`           // Type of data
	Pair           string        `json:"pair,omitempty" yaml:"pair,omitempty"` // Trading pair for price feeds (e.g., "BTCUSDT")
	Base           string        `json:"base,omitempty" yaml:"base,omitempty"`
	Quote          string        `json:"quote,omitempty" yaml:"quote,omitempty"`
	Decimals       int           `json:"decimals" yaml:"decimals"` // Decimal precision (default: 8)
	Sources        []string      `json:"sources" yaml:"sources"`   // Source IDs to use
	MinSources     int           `json:"min_sources,omitempty" yaml:"min_sources,omitempty"`
	Aggregation    Aggregation   `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	UpdateInterval time.Duration `json:"update_interval,omitempty" yaml:"update_interval,omitempty"` // Per-feed update interval
	Enabled        bool          `json:"enabled" yaml:"enabled"`
}

// PublishPolicyConfig controls when prices are anchored on-chain.
// Values are expressed in basis points (bps): 1 bps = 0.01%.
type PublishPolicyConfig struct {
	// ThresholdBps is the minimum relative change required to consider publishing.
	// Default: 10 bps = 0.10%.
	ThresholdBps int `json:"threshold_bps,omitempty" yaml:"threshold_bps,omitempty"`
	// HysteresisBps is used as a confirmation threshold after a spike is detected.
	// Default: 8 bps = 0.08%.
	HysteresisBps int `json:"hysteresis_bps,omitempty" yaml:"hysteresis_bps,omitempty"`
	// MinInterval is the minimum time between publishes per symbol.
	// Default: 5s.
	MinInterval time.Duration `json:"min_interval,omitempty" yaml:"min_interval,omitempty"`
	// MaxPerMinute caps publish frequency per symbol (soft cap; enforced in-process).
	// Default: 30.
	MaxPerMinute int `json:"max_per_minute,omitempty" yaml:"max_per_minute,omitempty"`
}

// FeedsConfig is the root configuration for the neofeeds engine.
type FeedsConfig struct {
	Version        string              `json:"version" yaml:"version"`
	Sources        []SourceConfig      `json:"sources" yaml:"sources"`
	Feeds          []FeedConfig        `json:"feeds" yaml:"feeds"`
	DefaultSources []string            `json:"default_sources,omitempty" yaml:"default_sources,omitempty"` // Default sources for feeds that don't specify
	UpdateInterval time.Duration       `json:"update_interval,omitempty" yaml:"update_interval,omitempty"` // Global update interval
	PublishPolicy  PublishPolicyConfig `json:"publish_policy,omitempty" yaml:"publish_policy,omitempty"`
	// StrictMode requires https source URLs and rejects private network targets.
	StrictMode bool `json:"strict_mode,omitempty" yaml:"strict_mode,omitempty"`
}

// LoadConfigFromFile loads configuration from a JSON or YAML file.
func LoadConfigFromFile(path string) (*FeedsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg FeedsConfig

	// Try YAML first (also handles JSON)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		// Try JSON explicitly
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration and sets defaults.
// Configuration errors are fatal at startup: a misconfigured feed must not
// silently run with partial source coverage.
func (c *FeedsConfig) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source required")
	}

	sourceMap := make(map[string]bool)
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.ID == "" {
			return fmt.Errorf("source[%d]: id required", i)
		}
		if sourceMap[src.ID] {
			return fmt.Errorf("source[%d]: duplicate id %q", i, src.ID)
		}
		if src.URL == "" {
			return fmt.Errorf("source[%d]: url required", i)
		}
		if c.StrictMode && !strings.HasPrefix(strings.ToLower(src.URL), "https://") {
			return fmt.Errorf("source[%d]: https url required in strict mode", i)
		}
		if src.JSONPath == "" {
			return fmt.Errorf("source[%d]: json_path required", i)
		}
		if src.Weight <= 0 {
			src.Weight = 1
		}
		if src.Timeout <= 0 {
			src.Timeout = 10 * time.Second
		}
		sourceMap[src.ID] = true
	}

	for i := range c.Feeds {
		feed := &c.Feeds[i]
		if feed.ID == "" {
			return fmt.Errorf("feed[%d]: id required", i)
		}
		feed.ID = NormalizePair(feed.ID)
		if feed.ID == "" {
			return fmt.Errorf("feed[%d]: id required", i)
		}

		if strings.TrimSpace(feed.Base) == "" || strings.TrimSpace(feed.Quote) == "" {
			base, quote := ParseBaseQuoteFromPair(feed.ID)
			if base != "" {
				feed.Base = strings.ToUpper(base)
			}
			if quote != "" {
				feed.Quote = strings.ToUpper(quote)
			}
		}

		feed.Pair = strings.ToUpper(strings.TrimSpace(feed.Pair))
		if feed.DataType == "" {
			feed.DataType = DataTypePrice
		}
		if feed.Decimals <= 0 {
			feed.Decimals = 8
		}
		if len(feed.Sources) == 0 {
			feed.Sources = c.DefaultSources
		}
		for _, srcID := range feed.Sources {
			if !sourceMap[srcID] {
				return fmt.Errorf("feed[%d]: unknown source %q", i, srcID)
			}
		}
		if feed.MinSources <= 0 {
			feed.MinSources = 1
		}
		if feed.MinSources > len(feed.Sources) {
			return fmt.Errorf("feed[%d]: min_sources %d exceeds configured sources %d", i, feed.MinSources, len(feed.Sources))
		}
		switch feed.Aggregation {
		case "":
			feed.Aggregation = AggregationWeightedMean
		case AggregationWeightedMean, AggregationWeightedMedian, AggregationTrimmedMean:
		default:
			return fmt.Errorf("feed[%d]: unknown aggregation %q", i, feed.Aggregation)
		}
	}

	if c.UpdateInterval <= 0 {
		// High-frequency evaluation interval so sub-0.1% moves are seen
		// within one tick of occurring.
		c.UpdateInterval = 1 * time.Second
	}

	if c.PublishPolicy.ThresholdBps <= 0 {
		c.PublishPolicy.ThresholdBps = 10
	}
	if c.PublishPolicy.HysteresisBps <= 0 {
		c.PublishPolicy.HysteresisBps = 8
	}
	if c.PublishPolicy.MinInterval <= 0 {
		c.PublishPolicy.MinInterval = 5 * time.Second
	}
	if c.PublishPolicy.MaxPerMinute <= 0 {
		c.PublishPolicy.MaxPerMinute = 30
	}

	return nil
}

// GetSource returns a source by ID.
func (c *FeedsConfig) GetSource(id string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

// GetFeed returns a feed by ID.
func (c *FeedsConfig) GetFeed(id string) *FeedConfig {
	for i := range c.Feeds {
		if c.Feeds[i].ID == id {
			return &c.Feeds[i]
		}
	}
	return nil
}

// GetEnabledFeeds returns all enabled feeds.
func (c *FeedsConfig) GetEnabledFeeds() []FeedConfig {
	var feeds []FeedConfig
	for i := range c.Feeds {
		feed := &c.Feeds[i]
		if feed.Enabled {
			feeds = append(feeds, *feed)
		}
	}
	return feeds
}

// ToJSON serializes config to JSON.
func (c *FeedsConfig) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ToYAML serializes config to YAML.
func (c *FeedsConfig) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// NormalizePair canonicalizes a feed/pair identifier: trimmed, upper-cased,
// legacy "/" and "_" delimiters mapped to "-".
func NormalizePair(pair string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	p = strings.ReplaceAll(p, "/", "-")
	p = strings.ReplaceAll(p, "_", "-")
	return p
}

// ParseBaseQuoteFromPair splits a canonical pair like "BTC-USD" into base and quote.
func ParseBaseQuoteFromPair(pair string) (base, quote string) {
	parts := strings.SplitN(NormalizePair(pair), "-", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", ""
}

// Package source fetches raw observations from external price sources.
package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/httputil"
)

// Observation is the ephemeral result of one fetch. It is produced each
// tick and consumed immediately by the aggregator; never persisted.
type Observation struct {
	SourceID  string
	Price     int64 // fixed-point at the feed's decimals
	Weight    int
	FetchedAt time.Time
	Err       error
}

// Fetcher issues templated requests to external sources and extracts
// scalar values. It is stateless and safe for concurrent use.
type Fetcher struct {
	httpClient *http.Client
	strictMode bool
}

// NewFetcher creates a fetcher. The client timeout is a backstop; each
// request carries its own per-source deadline.
func NewFetcher(strictMode bool) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		strictMode: strictMode,
	}
}

// Fetch retrieves one observation from a source. Any transport, timeout,
// or extraction failure is recorded on the observation's Err field; the
// caller never retries inline, the next scheduled tick is the retry.
func (f *Fetcher) Fetch(ctx context.Context, feed *config.FeedConfig, src *config.SourceConfig) Observation {
	obs := Observation{
		SourceID:  src.ID,
		Weight:    src.Weight,
		FetchedAt: time.Now(),
	}

	value, err := f.fetchValue(ctx, feed, src)
	if err != nil {
		obs.Err = err
		return obs
	}

	decimals := feed.Decimals
	if decimals <= 0 {
		decimals = 8
	}
	obs.Price = int64(value * float64(Pow10(decimals)))
	if obs.Price <= 0 {
		obs.Err = fmt.Errorf("source %s returned non-positive price", src.ID)
	}
	return obs
}

func (f *Fetcher) fetchValue(ctx context.Context, feed *config.FeedConfig, src *config.SourceConfig) (float64, error) {
	url := FormatSourceURL(src.URL, feed, src)

	timeout := src.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if f.strictMode && !allowPrivateSourceTargets() {
		if err := ValidateSourceURL(requestCtx, url); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, err
	}

	for k, v := range src.Headers {
		req.Header.Set(k, resolveEnvVar(v))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, 32<<10)
		if readErr != nil {
			return 0, readErr
		}
		msg := strings.TrimSpace(string(respBody))
		if truncated {
			msg += "...(truncated)"
		}
		return 0, fmt.Errorf("price source returned HTTP %d: %s", resp.StatusCode, msg)
	}

	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return 0, err
	}

	jsonPath := FormatJSONPath(src.JSONPath, feed, src)
	result := gjson.GetBytes(body, jsonPath)
	if !result.Exists() {
		return 0, fmt.Errorf("price not found in response")
	}

	value := result.Float()
	if value <= 0 {
		return 0, fmt.Errorf("source %s returned non-positive value", src.ID)
	}
	return value, nil
}

// resolveEnvVar resolves ${VAR_NAME} placeholders with environment values.
// Lets API keys live outside the config document.
func resolveEnvVar(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envKey := value[2 : len(value)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return value
}

// pow10Table provides precomputed powers of 10 for common decimal precisions.
var pow10Table = [...]int64{
	1,
	10,
	100,
	1000,
	10000,
	100000,
	1000000,
	10000000,
	100000000,
	1000000000,
	10000000000,
	100000000000,
	1000000000000,
	10000000000000,
	100000000000000,
	1000000000000000,
	10000000000000000,
	100000000000000000,
	1000000000000000000,
}

// Pow10 returns 10^n using a lookup table for common values.
func Pow10(n int) int64 {
	if n >= 0 && n < len(pow10Table) {
		return pow10Table[n]
	}
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

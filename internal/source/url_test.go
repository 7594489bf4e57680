package source

import (
	"testing"

	"github.com/R3E-Network/neofeeds/internal/config"
)

func TestFormatSourceURL(t *testing.T) {
	feed := &config.FeedConfig{ID: "BTC-USD", Base: "BTC", Quote: "USD", Pair: "BTCUSDT"}

	tests := []struct {
		name string
		tmpl string
		src  *config.SourceConfig
		want string
	}{
		{
			name: "pair placeholder uses feed pair",
			tmpl: "https://api.example.com/ticker?symbol={pair}",
			src:  &config.SourceConfig{},
			want: "https://api.example.com/ticker?symbol=BTCUSDT",
		},
		{
			name: "base and quote placeholders",
			tmpl: "https://api.example.com/prices/{base}-{quote}/spot",
			src:  &config.SourceConfig{},
			want: "https://api.example.com/prices/BTC-USD/spot",
		},
		{
			name: "pair template with quote override",
			tmpl: "https://api.example.com/ticker?instId={pair}",
			src:  &config.SourceConfig{PairTemplate: "{base}-{quote}", QuoteOverride: "USDT"},
			want: "https://api.example.com/ticker?instId=BTC-USDT",
		},
		{
			name: "base override applies everywhere",
			tmpl: "https://api.example.com/{base}/{quote}?symbol={pair}",
			src:  &config.SourceConfig{PairTemplate: "{base}{quote}", BaseOverride: "XBT"},
			want: "https://api.example.com/XBT/USD?symbol=XBTUSD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSourceURL(tt.tmpl, feed, tt.src); got != tt.want {
				t.Errorf("FormatSourceURL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatSourceURLDerivesBaseQuote(t *testing.T) {
	feed := &config.FeedConfig{ID: "ETH-USD"}
	got := FormatSourceURL("https://x.test/{base}/{quote}", feed, &config.SourceConfig{})
	want := "https://x.test/ETH/USD"
	if got != want {
		t.Errorf("FormatSourceURL() = %s, want %s", got, want)
	}
}

func TestFormatSourceURLNoPairFallsBackToFeedID(t *testing.T) {
	feed := &config.FeedConfig{ID: "NEO-USD", Base: "NEO", Quote: "USD"}
	got := FormatSourceURL("https://x.test/?s={pair}", feed, &config.SourceConfig{})
	want := "https://x.test/?s=NEO-USD"
	if got != want {
		t.Errorf("FormatSourceURL() = %s, want %s", got, want)
	}
}

func TestFormatJSONPath(t *testing.T) {
	feed := &config.FeedConfig{ID: "BTC-USD", Base: "BTC", Quote: "USD"}

	got := FormatJSONPath("data.{base}.{quote}.price", feed, &config.SourceConfig{QuoteOverride: "USDT"})
	want := "data.BTC.USDT.price"
	if got != want {
		t.Errorf("FormatJSONPath() = %s, want %s", got, want)
	}

	if got := FormatJSONPath("", feed, nil); got != "" {
		t.Errorf("FormatJSONPath(empty) = %s, want empty", got)
	}
}

func TestPow10(t *testing.T) {
	tests := []struct {
		n    int
		want int64
	}{
		{0, 1},
		{1, 10},
		{8, 100000000},
		{18, 1000000000000000000},
	}
	for _, tt := range tests {
		if got := Pow10(tt.n); got != tt.want {
			t.Errorf("Pow10(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

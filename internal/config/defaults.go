package config

import "time"

// DefaultConfig returns the default configuration:
// - 3 HTTP sources (binance, coinbase, okx)
// - 1s evaluation interval
// - 0.10% publish threshold with 0.08% hysteresis confirmation
// - 5s minimum publish interval per symbol
func DefaultConfig() *FeedsConfig {
	return &FeedsConfig{
		Version: "1.0",
		Sources: []SourceConfig{
			{
				ID:       "binance",
				Name:     "Binance",
				URL:      "https://api.binance.com/api/v3/ticker/price?symbol={pair}",
				JSONPath: "price",
				Weight:   1,
				Timeout:  5 * time.Second,
				// Binance uses USDT pairs; we map USD -> USDT by default.
				PairTemplate:  "{base}{quote}",
				QuoteOverride: "USDT",
			},
			{
				ID:       "coinbase",
				Name:     "Coinbase",
				URL:      "https://api.coinbase.com/v2/prices/{base}-{quote}/spot",
				JSONPath: "data.amount",
				Weight:   1,
				Timeout:  5 * time.Second,
			},
			{
				ID:            "okx",
				Name:          "OKX",
				URL:           "https://www.okx.com/api/v5/market/ticker?instId={pair}",
				JSONPath:      "data.0.last",
				Weight:        1,
				Timeout:       5 * time.Second,
				PairTemplate:  "{base}-{quote}",
				QuoteOverride: "USDT",
			},
		},
		Feeds: []FeedConfig{
			{ID: "BTC-USD", Name: "Bitcoin", DataType: DataTypePrice, Pair: "BTCUSDT", Decimals: 8, Enabled: true},
			{ID: "ETH-USD", Name: "Ethereum", DataType: DataTypePrice, Pair: "ETHUSDT", Decimals: 8, Enabled: true},
			{ID: "XRP-USD", Name: "Ripple", DataType: DataTypePrice, Pair: "XRPUSDT", Decimals: 8, Enabled: true},
			{ID: "BNB-USD", Name: "BNB", DataType: DataTypePrice, Pair: "BNBUSDT", Decimals: 8, Enabled: true},
			{ID: "SOL-USD", Name: "Solana", DataType: DataTypePrice, Pair: "SOLUSDT", Decimals: 8, Enabled: true},
			{ID: "DOGE-USD", Name: "Dogecoin", DataType: DataTypePrice, Pair: "DOGEUSDT", Decimals: 8, Enabled: true},
			{ID: "ADA-USD", Name: "Cardano", DataType: DataTypePrice, Pair: "ADAUSDT", Decimals: 8, Enabled: true},
			{ID: "LINK-USD", Name: "Chainlink", DataType: DataTypePrice, Pair: "LINKUSDT", Decimals: 8, Enabled: true},
			{ID: "LTC-USD", Name: "Litecoin", DataType: DataTypePrice, Pair: "LTCUSDT", Decimals: 8, Enabled: true},
			{ID: "AVAX-USD", Name: "Avalanche", DataType: DataTypePrice, Pair: "AVAXUSDT", Decimals: 8, Enabled: true},
			{ID: "UNI-USD", Name: "Uniswap", DataType: DataTypePrice, Pair: "UNIUSDT", Decimals: 8, Enabled: true},
			{ID: "NEO-USD", Name: "Neo", DataType: DataTypePrice, Pair: "NEOUSDT", Decimals: 8, Enabled: true},
			{ID: "GAS-USD", Name: "Gas", DataType: DataTypePrice, Pair: "GASUSDT", Decimals: 8, Enabled: true},
			{ID: "TRX-USD", Name: "Tron", DataType: DataTypePrice, Pair: "TRXUSDT", Decimals: 8, Enabled: true},
			{ID: "HYPE-USD", Name: "Hyperliquid", DataType: DataTypePrice, Pair: "HYPEUSDT", Decimals: 8, Enabled: true},
			{ID: "XMR-USD", Name: "Monero", DataType: DataTypePrice, Pair: "XMRUSDT", Decimals: 8, Enabled: true},
			{ID: "ZEC-USD", Name: "Zcash", DataType: DataTypePrice, Pair: "ZECUSDT", Decimals: 8, Enabled: true},
			{ID: "SUI-USD", Name: "Sui", DataType: DataTypePrice, Pair: "SUIUSDT", Decimals: 8, Enabled: true},
			{ID: "BCH-USD", Name: "Bitcoin Cash", DataType: DataTypePrice, Pair: "BCHUSDT", Decimals: 8, Enabled: true},
			{ID: "ASTR-USD", Name: "Astar", DataType: DataTypePrice, Pair: "ASTRUSDT", Decimals: 8, Enabled: true},
		},
		DefaultSources: []string{"binance", "coinbase", "okx"},
		UpdateInterval: 1 * time.Second,
		PublishPolicy: PublishPolicyConfig{
			ThresholdBps:  10,
			HysteresisBps: 8,
			MinInterval:   5 * time.Second,
			MaxPerMinute:  30,
		},
	}
}

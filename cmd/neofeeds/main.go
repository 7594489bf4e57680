// Command neofeeds runs the price-feed publisher: it polls configured
// sources, aggregates observations per feed, and anchors gated rounds on the
// NeoFeeds contract.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/neofeeds/internal/attest"
	"github.com/R3E-Network/neofeeds/internal/chain"
	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/metrics"
	"github.com/R3E-Network/neofeeds/internal/server"
	"github.com/R3E-Network/neofeeds/internal/service"
	"github.com/R3E-Network/neofeeds/pkg/logging"
)

type settings struct {
	ListenAddr   string        `env:"LISTEN_ADDR,default=:8080"`
	ConfigPath   string        `env:"FEEDS_CONFIG_PATH"`
	NeoRPCURL    string        `env:"NEO_RPC_URL,required"`
	NetworkMagic uint          `env:"NEO_NETWORK_MAGIC,default=0"`
	RPCTimeout   time.Duration `env:"NEO_RPC_TIMEOUT,default=30s"`
	TxProxyURL   string        `env:"TX_PROXY_URL,required"`
	TxProxyToken string        `env:"TX_PROXY_TOKEN"`
	RateLimit    int           `env:"HTTP_RATE_LIMIT,default=20"`
	RateBurst    int           `env:"HTTP_RATE_BURST,default=40"`
	CORSOrigins  string        `env:"CORS_ORIGINS"`
}

func main() {
	// Optional .env for local development; environment takes precedence.
	_ = godotenv.Load()

	var s settings
	if err := envdecode.StrictDecode(&s); err != nil {
		log.Fatalf("configuration: %v", err)
	}

	logger := logging.NewFromEnv("neofeeds")

	cfg, err := loadFeedsConfig(s.ConfigPath)
	if err != nil {
		logger.WithError(err).Fatal("invalid feeds configuration")
	}

	addresses := chain.ContractAddressesFromEnv()
	if addresses.NeoFeeds == "" {
		logger.Fatal("CONTRACT_NEOFEEDS_HASH required")
	}

	client, err := chain.NewClient(chain.Config{
		RPCURL:    s.NeoRPCURL,
		NetworkID: uint32(s.NetworkMagic),
		Timeout:   s.RPCTimeout,
	})
	if err != nil {
		logger.WithError(err).Fatal("chain client")
	}

	invoker, err := chain.NewTxProxyInvoker(s.TxProxyURL, s.TxProxyToken, s.RPCTimeout)
	if err != nil {
		logger.WithError(err).Fatal("tx proxy")
	}

	ledger, err := chain.NewPriceFeedContract(client, invoker, addresses.NeoFeeds, logger)
	if err != nil {
		logger.WithError(err).Fatal("contract binding")
	}

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	checkChain(probeCtx, client, ledger, cfg, logger)
	probeCancel()

	identity := attest.NewProvider(logger)

	svc := service.New(service.Options{
		Config:      cfg,
		Ledger:      ledger,
		Writer:      ledger,
		Attestation: identity.Hash(),
		Server: server.Options{
			ListenAddr:        s.ListenAddr,
			RequestsPerSecond: s.RateLimit,
			Burst:             s.RateBurst,
			CORSOrigins:       splitCSV(s.CORSOrigins),
		},
		Log:     logger,
		Metrics: metrics.New(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		logger.WithError(err).Fatal("service start")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown incomplete")
	}
}

// checkChain probes the RPC node and verifies each enabled feed is
// registered and active on the contract. Problems are logged, not fatal:
// the scheduler degrades per feed and the resync path recovers stale
// rounds once the chain is reachable again.
func checkChain(ctx context.Context, client *chain.Client, ledger *chain.PriceFeedContract, cfg *config.FeedsConfig, logger *logging.Logger) {
	height, err := client.GetBlockCount(ctx)
	if err != nil {
		logger.WithError(err).Warn("neo rpc unreachable at startup")
		return
	}
	logger.WithField("height", height).Info("neo rpc reachable")

	for _, feed := range cfg.GetEnabledFeeds() {
		registration, err := ledger.GetFeedConfig(ctx, feed.ID)
		switch {
		case err != nil:
			logger.WithError(err).WithField("feed", feed.ID).Warn("feed registration check failed")
		case registration == nil:
			logger.WithField("feed", feed.ID).Warn("feed not registered on-chain, updates will fault")
		case !registration.Active:
			logger.WithField("feed", feed.ID).Warn("feed inactive on-chain, updates will fault")
		}
	}
}

// loadFeedsConfig reads the feeds file when a path is configured, falling
// back to the built-in defaults.
func loadFeedsConfig(path string) (*config.FeedsConfig, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.LoadConfigFromFile(path)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

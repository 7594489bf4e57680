package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/neofeeds/internal/publish"
	"github.com/R3E-Network/neofeeds/pkg/logging"
)

// PriceFeedContract binds the NeoFeeds contract to the publish engine's
// ledger interfaces: reads go through a read-only invoke on the RPC node,
// writes go through the Invoker and are confirmed from the application log.
type PriceFeedContract struct {
	client       *Client
	invoker      Invoker
	contractHash string
	log          *logging.Logger
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// NewPriceFeedContract creates the contract binding.
func NewPriceFeedContract(client *Client, invoker Invoker, contractHash string, log *logging.Logger) (*PriceFeedContract, error) {
	if contractHash == "" {
		return nil, fmt.Errorf("contract hash required")
	}
	return &PriceFeedContract{
		client:       client,
		invoker:      invoker,
		contractHash: contractHash,
		log:          log,
		waitTimeout:  DefaultTxWaitTimeout,
		pollInterval: DefaultPollInterval,
	}, nil
}

// GetLatest reads the latest anchored round for a symbol. A symbol that has
// never been published returns (nil, nil).
func (p *PriceFeedContract) GetLatest(ctx context.Context, symbol string) (*publish.LedgerRecord, error) {
	result, err := p.client.InvokeFunction(ctx, p.contractHash, "getLatest", []ContractParam{
		NewStringParam(symbol),
	})
	if err != nil {
		return nil, fmt.Errorf("getLatest %s: %w", symbol, err)
	}
	if result.State != "HALT" {
		return nil, fmt.Errorf("getLatest %s: %s", symbol, result.Exception)
	}
	if len(result.Stack) == 0 {
		return nil, nil
	}

	record, err := ParsePriceRecord(result.Stack[0])
	if err != nil {
		return nil, fmt.Errorf("getLatest %s: %w", symbol, err)
	}
	if record == nil {
		return nil, nil
	}

	if !record.RoundID.IsInt64() || !record.Price.IsInt64() || !record.SourceSetID.IsInt64() {
		return nil, fmt.Errorf("getLatest %s: value out of int64 range", symbol)
	}

	return &publish.LedgerRecord{
		RoundID:     record.RoundID.Int64(),
		Price:       record.Price.Int64(),
		Timestamp:   time.Unix(int64(record.Timestamp), 0).UTC(),
		Attestation: record.AttestationHash,
		SourceSetID: record.SourceSetID.Int64(),
	}, nil
}

// GetFeedConfig reads the contract's registration for a symbol. An
// unregistered symbol returns (nil, nil).
func (p *PriceFeedContract) GetFeedConfig(ctx context.Context, symbol string) (*ContractFeedConfig, error) {
	result, err := p.client.InvokeFunction(ctx, p.contractHash, "getFeedConfig", []ContractParam{
		NewStringParam(symbol),
	})
	if err != nil {
		return nil, fmt.Errorf("getFeedConfig %s: %w", symbol, err)
	}
	if result.State != "HALT" {
		return nil, fmt.Errorf("getFeedConfig %s: %s", symbol, result.Exception)
	}
	if len(result.Stack) == 0 || result.Stack[0].Type == "Null" {
		return nil, nil
	}

	feedCfg, err := ParseFeedConfig(result.Stack[0])
	if err != nil {
		return nil, fmt.Errorf("getFeedConfig %s: %w", symbol, err)
	}
	return feedCfg, nil
}

// Update anchors one round on-chain. The invocation is signed and broadcast
// by the Invoker; Update then waits for the application log and fails on a
// FAULTed execution, which is how a duplicate round surfaces.
func (p *PriceFeedContract) Update(ctx context.Context, symbol string, roundID, price int64, timestamp time.Time, attestation []byte, sourceSetID int64) (string, error) {
	params := []ContractParam{
		NewStringParam(symbol),
		NewInt64Param(roundID),
		NewInt64Param(price),
		NewInt64Param(timestamp.Unix()),
		NewByteArrayParam(attestation),
		NewInt64Param(sourceSetID),
	}

	txHash, err := p.invoker.Invoke(ctx, p.contractHash, "update", params)
	if err != nil {
		return "", fmt.Errorf("update %s round %d: %w", symbol, roundID, err)
	}

	if _, err := p.client.ConfirmTransaction(ctx, txHash, p.pollInterval, p.waitTimeout); err != nil {
		return "", fmt.Errorf("update %s round %d: %w", symbol, roundID, err)
	}

	p.log.WithFields(map[string]interface{}{
		"symbol": symbol,
		"round":  roundID,
		"tx":     txHash,
	}).Debug("round anchored on-chain")

	return txHash, nil
}

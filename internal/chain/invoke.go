package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Contract Invocation Methods
// =============================================================================

// InvokeFunction invokes a contract function (read-only).
func (c *Client) InvokeFunction(ctx context.Context, scriptHash string, method string, params []ContractParam) (*InvokeResult, error) {
	if params == nil {
		params = []ContractParam{}
	}

	args := []interface{}{scriptHash, method, params}
	result, err := c.Call(ctx, "invokefunction", args)
	if err != nil {
		return nil, err
	}

	var invokeResult InvokeResult
	if err := json.Unmarshal(result, &invokeResult); err != nil {
		return nil, err
	}
	return &invokeResult, nil
}

// isNotFoundError reports whether an RPC error means the transaction is not
// yet known to the node.
func isNotFoundError(err error) bool {
	rpcErr, ok := err.(*RPCError)
	if !ok {
		return false
	}
	return rpcErr.Code == -100 || strings.Contains(strings.ToLower(rpcErr.Message), "unknown transaction")
}

// WaitForApplicationLog polls for a transaction application log until it is available or context is done.
// A missing transaction is treated as transient and retried until the context deadline/timeout expires.
func (c *Client) WaitForApplicationLog(ctx context.Context, txHash string, pollInterval time.Duration) (*ApplicationLog, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			log, err := c.GetApplicationLog(ctx, txHash)
			if err != nil {
				if isNotFoundError(err) {
					continue
				}
				return nil, err
			}
			return log, nil
		}
	}
}

// DefaultTxWaitTimeout is the default timeout for waiting for transaction execution.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the default interval for polling transaction status.
const DefaultPollInterval = 2 * time.Second

// ConfirmTransaction waits for a broadcast transaction to execute and
// verifies it halted cleanly. A FAULTed execution is an error.
func (c *Client) ConfirmTransaction(ctx context.Context, txHash string, pollInterval, waitTimeout time.Duration) (*TxResult, error) {
	if waitTimeout <= 0 {
		waitTimeout = DefaultTxWaitTimeout
	}

	wctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	appLog, err := c.WaitForApplicationLog(wctx, txHash, pollInterval)
	if err != nil {
		return nil, fmt.Errorf("wait for %s execution: %w", txHash, err)
	}

	result := &TxResult{
		TxHash: txHash,
		AppLog: appLog,
	}
	for _, exec := range appLog.Executions {
		result.VMState = exec.VMState
		if exec.VMState != "HALT" {
			return result, fmt.Errorf("transaction %s faulted: %s", txHash, exec.Exception)
		}
	}
	return result, nil
}

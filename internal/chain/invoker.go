package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/R3E-Network/neofeeds/internal/httputil"
)

// Invoker submits a state-changing contract invocation for signing and
// broadcast, returning the transaction hash. Signing happens outside this
// process; the publisher never holds key material.
type Invoker interface {
	Invoke(ctx context.Context, contractHash, method string, params []ContractParam) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, contractHash, method string, params []ContractParam) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, contractHash, method string, params []ContractParam) (string, error) {
	return f(ctx, contractHash, method, params)
}

// TxProxyInvoker submits invocations to an external transaction proxy that
// signs and broadcasts them.
type TxProxyInvoker struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewTxProxyInvoker creates an invoker backed by a transaction proxy.
func NewTxProxyInvoker(baseURL, authToken string, timeout time.Duration) (*TxProxyInvoker, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("tx proxy URL required")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TxProxyInvoker{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type txProxyRequest struct {
	Contract string          `json:"contract"`
	Method   string          `json:"method"`
	Params   []ContractParam `json:"params"`
	Scope    string          `json:"scope"`
}

type txProxyResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

// Invoke submits the invocation and returns the broadcast transaction hash.
func (p *TxProxyInvoker) Invoke(ctx context.Context, contractHash, method string, params []ContractParam) (string, error) {
	if params == nil {
		params = []ContractParam{}
	}

	body, err := json.Marshal(txProxyRequest{
		Contract: contractHash,
		Method:   method,
		Params:   params,
		Scope:    ScopeCalledByEntry,
	})
	if err != nil {
		return "", fmt.Errorf("marshal invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoke %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return "", fmt.Errorf("invoke %s: read response: %w", method, err)
	}

	var proxyResp txProxyResponse
	if err := json.Unmarshal(respBody, &proxyResp); err != nil {
		return "", fmt.Errorf("invoke %s: decode response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		if proxyResp.Error != "" {
			return "", fmt.Errorf("invoke %s: %s", method, proxyResp.Error)
		}
		return "", fmt.Errorf("invoke %s: HTTP %d", method, resp.StatusCode)
	}
	if proxyResp.TxHash == "" {
		return "", fmt.Errorf("invoke %s: proxy returned no transaction hash", method)
	}
	return proxyResp.TxHash, nil
}

// internal/infra/solana/rpc_client.go
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"candyhouse/internal/application/usecase"
	"candyhouse/internal/domain/minting"
)

// Solana Devnet RPC endpoint (default)
const DevnetEndpoint = "https://api.devnet.solana.com"

// JSONRPCClient is a simple HTTP JSON-RPC client for Solana.
// It exists alongside the SDK client because the confirmation path needs
// the raw structured `err` objects the RPC returns; the classifier works
// on those, never on error message substrings.
type JSONRPCClient struct {
	Endpoint string
	HTTP     *http.Client
}

// NewJSONRPCClient creates a Solana JSON-RPC client.
// Falls back to the devnet endpoint when endpoint is empty.
func NewJSONRPCClient(endpoint string) *JSONRPCClient {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = DevnetEndpoint
	}
	return &JSONRPCClient{
		Endpoint: ep,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params any, out any) error {
	if c == nil || c.Endpoint == "" || c.HTTP == nil {
		return fmt.Errorf("solana rpc: client not configured")
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana rpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("solana rpc: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("solana rpc: http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("solana rpc: http status=%d", resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("solana rpc: decode response: %w", err)
	}
	if rr.Error != nil {
		// プリフライト失敗などは data.err にオンチェーンエラーを含む。
		// 構造化して返し、呼び出し側が errors.As で取り出せるようにする。
		if lerr := ledgerErrorFromRPCError(rr.Error); lerr != nil {
			return fmt.Errorf("solana rpc: %s: %w", method, lerr)
		}
		return fmt.Errorf("solana rpc: error code=%d message=%s", rr.Error.Code, rr.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("solana rpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// ========================
// getSignatureStatuses
// ========================

// signatureStatusesResult is the decoded `result` for getSignatureStatuses.
type signatureStatusesResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*struct {
		Slot               uint64          `json:"slot"`
		Confirmations      *uint64         `json:"confirmations"`
		Err                json.RawMessage `json:"err"`
		ConfirmationStatus string          `json:"confirmationStatus"`
	} `json:"value"`
}

// GetSignatureStatus implements usecase.SignatureStatusPort.
// commitment はレスポンスの confirmationStatus と比較するために
// 呼び出し側（ポーラー）が解釈します。ここでは履歴検索を有効にして
// 取得するだけです。
func (c *JSONRPCClient) GetSignatureStatus(ctx context.Context, txID string, commitment string) (usecase.SignatureStatus, error) {
	sig := strings.TrimSpace(txID)
	if sig == "" {
		return usecase.SignatureStatus{}, fmt.Errorf("solana rpc: signature is empty")
	}

	params := []any{
		[]string{sig},
		map[string]any{
			"searchTransactionHistory": true,
		},
	}

	var out signatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", params, &out); err != nil {
		return usecase.SignatureStatus{}, err
	}

	if len(out.Value) == 0 || out.Value[0] == nil {
		// レジャーはまだこの署名を知らない。pending 扱い。
		return usecase.SignatureStatus{Found: false}, nil
	}

	v := out.Value[0]
	return usecase.SignatureStatus{
		Found:              true,
		ConfirmationStatus: strings.TrimSpace(v.ConfirmationStatus),
		Err:                parseTransactionErr(v.Err),
	}, nil
}

// ========================
// getBalance
// ========================

type balanceResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value uint64 `json:"value"`
}

// GetBalance implements usecase.BalancePort. Returns lamports.
func (c *JSONRPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return 0, fmt.Errorf("solana rpc: address is empty")
	}

	params := []any{
		addr,
		map[string]any{
			"commitment": CommitmentConfirmed,
		},
	}

	var out balanceResult
	if err := c.call(ctx, "getBalance", params, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

// ========================
// getAccountInfo
// ========================

type accountInfoResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value json.RawMessage `json:"value"`
}

// AccountExists implements usecase.AccountInfoPort.
// value が null ならアカウントは存在しない。
func (c *JSONRPCClient) AccountExists(ctx context.Context, address string, commitment string) (bool, error) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return false, fmt.Errorf("solana rpc: address is empty")
	}
	if strings.TrimSpace(commitment) == "" {
		commitment = CommitmentProcessed
	}

	params := []any{
		addr,
		map[string]any{
			"commitment": commitment,
			"encoding":   "base64",
		},
	}

	var out accountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &out); err != nil {
		return false, err
	}

	trimmed := strings.TrimSpace(string(out.Value))
	return trimmed != "" && trimmed != "null", nil
}

// ========================
// sendTransaction
// ========================

// SendRawTransaction submits a signed, serialized transaction (base64).
// On preflight rejection the returned error wraps *minting.LedgerError
// carrying the on-chain custom code when the RPC reported one.
func (c *JSONRPCClient) SendRawTransaction(ctx context.Context, txBase64 string) (string, error) {
	if strings.TrimSpace(txBase64) == "" {
		return "", fmt.Errorf("solana rpc: transaction is empty")
	}

	params := []any{
		txBase64,
		map[string]any{
			"encoding":            "base64",
			"preflightCommitment": CommitmentConfirmed,
		},
	}

	var sig string
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// ========================
// error decoding helpers
// ========================

// parseTransactionErr decodes a transaction `err` field into a structured
// LedgerError. Shapes handled:
//   - null                                        → nil
//   - "SomeErrorString"                           → message only
//   - {"InstructionError":[idx,"Kind"]}           → message only
//   - {"InstructionError":[idx,{"Custom":311}]}   → custom code
func parseTransactionErr(raw json.RawMessage) *minting.LedgerError {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	// string variant
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &minting.LedgerError{Message: s}
	}

	// object variant
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &minting.LedgerError{Message: trimmed}
	}

	if ie, ok := obj["InstructionError"]; ok {
		var parts []json.RawMessage
		if err := json.Unmarshal(ie, &parts); err == nil && len(parts) == 2 {
			var detail map[string]uint32
			if err := json.Unmarshal(parts[1], &detail); err == nil {
				if code, ok := detail["Custom"]; ok {
					c := code
					return &minting.LedgerError{Custom: &c, Message: trimmed}
				}
			}
		}
	}

	return &minting.LedgerError{Message: trimmed}
}

// ledgerErrorFromRPCError extracts an on-chain error from an RPC error
// payload (e.g. -32002 preflight failure carries {"err": ..., "logs": ...}).
func ledgerErrorFromRPCError(re *rpcError) *minting.LedgerError {
	if re == nil {
		return nil
	}

	if len(re.Data) > 0 {
		var data struct {
			Err json.RawMessage `json:"err"`
		}
		if err := json.Unmarshal(re.Data, &data); err == nil {
			if lerr := parseTransactionErr(data.Err); lerr != nil {
				if lerr.Message == "" {
					lerr.Message = re.Message
				}
				return lerr
			}
		}
	}

	if strings.TrimSpace(re.Message) != "" {
		return &minting.LedgerError{Message: re.Message}
	}
	return nil
}

// commitment levels re-exported for RPC parameters in this package.
const (
	CommitmentProcessed = usecase.CommitmentProcessed
	CommitmentConfirmed = usecase.CommitmentConfirmed
	CommitmentFinalized = usecase.CommitmentFinalized
)

// internal/infra/solana/rpc_client_test.go
package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candyhouse/internal/domain/minting"
)

// newRPCTestServer は method → 生レスポンス JSON の対応で応答する
// フェイク RPC を立てます。
func newRPCTestServer(t *testing.T, responses map[string]string) *JSONRPCClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		body, ok := responses[req.Method]
		require.True(t, ok, "unexpected rpc method %q", req.Method)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewJSONRPCClient(srv.URL)
}

func TestParseTransactionErr(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantNil  bool
		wantCode *uint32
	}{
		{name: "null", raw: `null`, wantNil: true},
		{name: "empty", raw: ``, wantNil: true},
		{name: "string variant", raw: `"BlockhashNotFound"`},
		{name: "instruction error without custom", raw: `{"InstructionError":[0,"InvalidArgument"]}`},
		{name: "custom code", raw: `{"InstructionError":[3,{"Custom":311}]}`, wantCode: func() *uint32 { c := uint32(311); return &c }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTransactionErr(json.RawMessage(tt.raw))
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			if tt.wantCode != nil {
				require.NotNil(t, got.Custom)
				assert.Equal(t, *tt.wantCode, *got.Custom)
			} else {
				assert.Nil(t, got.Custom)
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestGetSignatureStatus_Pending(t *testing.T) {
	c := newRPCTestServer(t, map[string]string{
		"getSignatureStatuses": `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":100},"value":[null]}}`,
	})

	st, err := c.GetSignatureStatus(context.Background(), "sig-1", CommitmentConfirmed)
	require.NoError(t, err)
	assert.False(t, st.Found)
}

func TestGetSignatureStatus_Finalized(t *testing.T) {
	c := newRPCTestServer(t, map[string]string{
		"getSignatureStatuses": `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":100},"value":[{"slot":98,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}}`,
	})

	st, err := c.GetSignatureStatus(context.Background(), "sig-1", CommitmentFinalized)
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.Equal(t, CommitmentFinalized, st.ConfirmationStatus)
	assert.Nil(t, st.Err)
}

func TestGetSignatureStatus_CustomProgramError(t *testing.T) {
	c := newRPCTestServer(t, map[string]string{
		"getSignatureStatuses": `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":100},"value":[{"slot":98,"confirmations":1,"err":{"InstructionError":[3,{"Custom":311}]},"confirmationStatus":"confirmed"}]}}`,
	})

	st, err := c.GetSignatureStatus(context.Background(), "sig-1", CommitmentConfirmed)
	require.NoError(t, err)
	require.NotNil(t, st.Err)
	require.NotNil(t, st.Err.Custom)
	assert.Equal(t, uint32(311), *st.Err.Custom)
}

func TestGetBalance(t *testing.T) {
	c := newRPCTestServer(t, map[string]string{
		"getBalance": `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":100},"value":12000000}}`,
	})

	balance, err := c.GetBalance(context.Background(), "addr-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(12_000_000), balance)
}

func TestAccountExists(t *testing.T) {
	t.Run("missing account", func(t *testing.T) {
		c := newRPCTestServer(t, map[string]string{
			"getAccountInfo": `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":100},"value":null}}`,
		})

		exists, err := c.AccountExists(context.Background(), "meta-1", CommitmentProcessed)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("existing account", func(t *testing.T) {
		c := newRPCTestServer(t, map[string]string{
			"getAccountInfo": `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":100},"value":{"lamports":1461600,"owner":"metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s","data":["","base64"]}}}`,
		})

		exists, err := c.AccountExists(context.Background(), "meta-1", CommitmentProcessed)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

// プリフライト拒否の data.err からオンチェーンエラーコードが
// 構造化エラーとして取り出せること。分類器への入力経路。
func TestSendRawTransaction_PreflightRejectionCarriesLedgerError(t *testing.T) {
	c := newRPCTestServer(t, map[string]string{
		"sendTransaction": `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Transaction simulation failed: Error processing Instruction 3: custom program error: 0x137","data":{"err":{"InstructionError":[3,{"Custom":311}]},"logs":[]}}}`,
	})

	_, err := c.SendRawTransaction(context.Background(), "dGVzdA==")
	require.Error(t, err)

	lerr, ok := minting.AsLedgerError(err)
	require.True(t, ok, "preflight rejection must wrap a LedgerError")
	require.NotNil(t, lerr.Custom)
	assert.Equal(t, uint32(311), *lerr.Custom)
}

func TestSendRawTransaction_PlainRPCErrorIsNotLedgerCoded(t *testing.T) {
	c := newRPCTestServer(t, map[string]string{
		"sendTransaction": `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind by 150 slots"}}`,
	})

	_, err := c.SendRawTransaction(context.Background(), "dGVzdA==")
	require.Error(t, err)

	lerr, ok := minting.AsLedgerError(err)
	require.True(t, ok)
	assert.Nil(t, lerr.Custom, "transport-level errors carry no custom code")
}

func TestSendRawTransaction_Success(t *testing.T) {
	c := newRPCTestServer(t, map[string]string{
		"sendTransaction": `{"jsonrpc":"2.0","id":1,"result":"5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"}`,
	})

	sig, err := c.SendRawTransaction(context.Background(), "dGVzdA==")
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

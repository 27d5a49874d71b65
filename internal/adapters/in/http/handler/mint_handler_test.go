// internal/adapters/in/http/handler/mint_handler_test.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usecase "candyhouse/internal/application/usecase"
	"candyhouse/internal/domain/whitelist"
)

type okSubmitter struct{}

func (okSubmitter) Submit(_ context.Context, _ string) (usecase.MintSubmission, error) {
	return usecase.MintSubmission{TxID: "sig-abc", MintAddress: "mint-xyz", MetadataKey: "meta-xyz"}, nil
}

type finalizedStatus struct{}

func (finalizedStatus) GetSignatureStatus(_ context.Context, _ string, _ string) (usecase.SignatureStatus, error) {
	return usecase.SignatureStatus{Found: true, ConfirmationStatus: usecase.CommitmentFinalized}, nil
}

type fundedBalance struct{}

func (fundedBalance) GetBalance(_ context.Context, _ string) (uint64, error) {
	return usecase.DefaultMinBalanceLamports, nil
}

type existingAccount struct{}

func (existingAccount) AccountExists(_ context.Context, _ string, _ string) (bool, error) {
	return true, nil
}

func newMintHandler(entries ...whitelist.Entry) http.Handler {
	repo := &fakeRepo{entries: map[string]whitelist.Entry{}}
	for _, e := range entries {
		repo.entries[e.Address] = e
	}
	leases := usecase.NewLeaseUsecase(repo)
	poller := usecase.NewConfirmationPoller(finalizedStatus{}, time.Millisecond)
	orch := usecase.NewMintOrchestrator(leases, poller, okSubmitter{}, existingAccount{}, fundedBalance{}, usecase.OrchestratorConfig{
		ConfirmTimeout: 100 * time.Millisecond,
	})
	return NewMintHandler(orch)
}

func TestMintHandler_Success(t *testing.T) {
	h := newMintHandler(whitelist.Entry{ID: "wl-1", Address: testAddr, Status: whitelist.StatusNotMinted})

	req := httptest.NewRequest(http.MethodPost, "/mint", strings.NewReader(`{"address":"`+testAddr+`"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Minted bool   `json:"minted"`
		TxID   string `json:"txId"`
		Alert  struct {
			Message  string `json:"message"`
			Severity string `json:"severity"`
		} `json:"alert"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Minted)
	assert.Equal(t, "sig-abc", body.TxID)
	assert.Equal(t, "Congratulations! Mint succeeded!", body.Alert.Message)
	assert.Equal(t, "success", body.Alert.Severity)
}

// HTTP レベルでも失敗はステータス 200 + アラートで返る。
// 4xx/5xx はリクエスト自体の問題にのみ使う。
func TestMintHandler_NotOnWhitelistStillReturns200(t *testing.T) {
	h := newMintHandler()

	req := httptest.NewRequest(http.MethodPost, "/mint", strings.NewReader(`{"address":"`+testAddr+`"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Minted bool `json:"minted"`
		Alert  struct {
			Message string `json:"message"`
		} `json:"alert"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Minted)
	assert.Equal(t, "Mint failed! You are not on the whitelist!", body.Alert.Message)
}

func TestMintHandler_BadRequests(t *testing.T) {
	h := newMintHandler()

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mint", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mint", strings.NewReader(`{"address":"  "}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/mint", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

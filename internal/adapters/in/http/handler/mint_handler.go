// internal/adapters/in/http/handler/mint_handler.go
package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	usecase "candyhouse/internal/application/usecase"
)

// MintHandler serves the mint endpoint.
// Intended mount (router side):
// - POST /mint
//
// Request body: {"address": "<participant wallet base58>"}
// Response    : usecase.MintResult (alert + txId)
//
// 1 リクエスト = 1 オーケストレーション実行。確認ポーリングが
// 完了するまでブロックするため、呼び出し側のタイムアウトは
// CONFIRM_TIMEOUT_MS より長く設定すること。
type MintHandler struct {
	uc *usecase.MintOrchestrator
}

func NewMintHandler(uc *usecase.MintOrchestrator) http.Handler {
	return &MintHandler{uc: uc}
}

type mintRequestBody struct {
	Address string `json:"address"`
}

func (h *MintHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		writeErr(w, http.StatusInternalServerError, "mint handler is not configured")
		return
	}

	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body mintRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}

	address := strings.TrimSpace(body.Address)
	if address == "" {
		writeErr(w, http.StatusBadRequest, "address is required")
		return
	}

	log.Printf("[mint_handler] mint requested: address=%s", address)

	result := h.uc.Mint(r.Context(), address)
	writeJSON(w, http.StatusOK, result)
}

// internal/adapters/in/http/handler/whitelist_handler.go
package handler

import (
	"errors"
	"net/http"
	"strings"

	usecase "candyhouse/internal/application/usecase"
	wldom "candyhouse/internal/domain/whitelist"
)

// WhitelistHandler serves whitelist status lookups.
// Intended mount (router side):
// - GET /whitelist/status?address=...
//
// 参加者が自分のエントリの状態を確認するための読み取り専用 API。
// 生のレジャーエラーコード等は含まれません。
type WhitelistHandler struct {
	leases *usecase.LeaseUsecase
}

func NewWhitelistHandler(leases *usecase.LeaseUsecase) http.Handler {
	return &WhitelistHandler{leases: leases}
}

type whitelistStatusResponse struct {
	Address string `json:"address"`
	Status  string `json:"status"`
	TxID    string `json:"txId,omitempty"`
}

func (h *WhitelistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.leases == nil {
		writeErr(w, http.StatusInternalServerError, "whitelist handler is not configured")
		return
	}

	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeErr(w, http.StatusBadRequest, "address is required")
		return
	}

	entry, err := h.leases.FindLease(r.Context(), address)
	if err != nil {
		if errors.Is(err, wldom.ErrNotFound) || errors.Is(err, wldom.ErrInvalidAddress) {
			writeErr(w, http.StatusNotFound, "not on the whitelist")
			return
		}
		writeErr(w, http.StatusInternalServerError, "whitelist lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, whitelistStatusResponse{
		Address: entry.Address,
		Status:  string(entry.Status),
		TxID:    entry.TxID,
	})
}

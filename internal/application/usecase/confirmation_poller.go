// internal/application/usecase/confirmation_poller.go
package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	"candyhouse/internal/domain/minting"
)

// ============================================================
// ConfirmationPoller
// ============================================================
//
// 送信済みトランザクション署名を、確定するかタイムアウトするまで
// 固定間隔で問い合わせます。確定失敗はその場で分類して返し、
// このポーリング内での再試行はしません。

// CommitmentProcessed / 〜Finalized は Solana の commitment level 値です。
// 高いほど確実で遅い。
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

const defaultPollInterval = 3 * time.Second

// SignatureStatus は getSignatureStatuses 1 件分の結果です。
// Found=false はレジャーがまだ署名を知らない（pending 扱い）。
type SignatureStatus struct {
	Found              bool
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                *minting.LedgerError
}

// SignatureStatusPort はレジャーへの確認読み取りポートです。
// 実装は internal/infra/solana の JSON-RPC クライアント。
type SignatureStatusPort interface {
	GetSignatureStatus(ctx context.Context, txID string, commitment string) (SignatureStatus, error)
}

type ConfirmationPoller struct {
	status   SignatureStatusPort
	interval time.Duration
}

// NewConfirmationPoller は確認ポーラーを初期化します。
// interval <= 0 の場合はデフォルト間隔を使います。
func NewConfirmationPoller(status SignatureStatusPort, interval time.Duration) *ConfirmationPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ConfirmationPoller{status: status, interval: interval}
}

// Await は署名が確定 / 確定失敗 / タイムアウトするまでブロックします。
//   - strict=true は要求 commitment を confirmed から finalized へ引き上げます
//     （偽陰性は減るがレイテンシ増）。
//   - 問い合わせ自体の失敗（ネットワーク等）は pending と同じ扱いで
//     タイムアウトまで再試行します。
//   - ctx のキャンセルもタイムアウトとして扱います。送信済み
//     トランザクションはレジャーから取り消せないため、ユーザー起点の
//     キャンセルは存在しません。
func (p *ConfirmationPoller) Await(ctx context.Context, txID string, timeout time.Duration, strict bool) minting.Outcome {
	if p == nil || p.status == nil {
		log.Printf("[confirm] poller not configured; treating as timeout")
		return minting.TimedOut()
	}

	sig := strings.TrimSpace(txID)
	if sig == "" {
		return minting.TimedOut()
	}

	commitment := CommitmentConfirmed
	if strict {
		commitment = CommitmentFinalized
	}

	deadline := time.Now().Add(timeout)

	for {
		st, err := p.status.GetSignatureStatus(ctx, sig, commitment)
		if err != nil {
			// 読み取り失敗は「まだ分からない」。確定失敗ではない。
			log.Printf("[confirm] status query failed (will retry): tx=%s err=%v", maskShort(sig), err)
		} else if st.Err != nil {
			// レジャーが確定失敗を報告した。即座に分類して返す。
			log.Printf("[confirm] definite ledger failure: tx=%s err=%v", maskShort(sig), st.Err)
			return minting.Classify(st.Err)
		} else if st.Found && reachedCommitment(st.ConfirmationStatus, commitment) {
			return minting.Confirmed()
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Printf("[confirm] timed out after %s: tx=%s", timeout, maskShort(sig))
			return minting.TimedOut()
		}

		wait := p.interval
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			log.Printf("[confirm] context done while polling: tx=%s err=%v", maskShort(sig), ctx.Err())
			return minting.TimedOut()
		case <-time.After(wait):
		}
	}
}

// reachedCommitment は観測された confirmation status が要求レベルに
// 達しているかを返します。
func reachedCommitment(observed, required string) bool {
	return commitmentRank(observed) >= commitmentRank(required)
}

func commitmentRank(level string) int {
	switch level {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

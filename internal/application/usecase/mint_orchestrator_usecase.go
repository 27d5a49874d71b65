// internal/application/usecase/mint_orchestrator_usecase.go
package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"candyhouse/internal/domain/minting"
	"candyhouse/internal/domain/whitelist"
)

// ============================================================
// Ports (collaborators for MintOrchestrator)
// ============================================================

// MintSubmission は送信コラボレーターが返す結果です。
type MintSubmission struct {
	TxID        string
	MintAddress string
	MetadataKey string
}

// MintSubmitPort はミントトランザクションの構築・署名・送信を行う
// コラボレーターです。送信時の即時失敗は error で返し、可能であれば
// *minting.LedgerError をラップして構造化コードを伝えます。
type MintSubmitPort interface {
	Submit(ctx context.Context, participantAddress string) (MintSubmission, error)
}

// AccountInfoPort はアカウント存在確認の読み取りポートです。
type AccountInfoPort interface {
	AccountExists(ctx context.Context, address string, commitment string) (bool, error)
}

// BalancePort は参加者残高（lamports）の読み取りポートです。
type BalancePort interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// MintAttemptRecord は監査ログ 1 件分です（任意機能）。
type MintAttemptRecord struct {
	Address     string
	TxID        string
	MetadataKey string
	Outcome     string
	Reason      string
	RawCode     *uint32
	CreatedAt   time.Time
}

// AttemptRecorder は試行の監査記録ポートです。nil 許容（無効時）。
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, rec MintAttemptRecord) error
}

// OperatorNotifier は stuck リース発生時のオペレーター通知ポートです。
// nil 許容（無効時）。
type OperatorNotifier interface {
	NotifyStuckLease(ctx context.Context, address, txID string, rawCode *uint32) error
}

// ============================================================
// MintOrchestrator
// ============================================================
//
// 状態機械: Idle → LeaseRequested → Submitting → Confirming →
// Reconciling → Terminal(Success|Failure)。
// 1 回の呼び出し = 1 回の試行。内部での自動リトライはありません
// （Confirming の有界ポーリングを除く）。
// どの分岐でも AlertEvent をちょうど 1 つ生成し、コラボレーターの
// エラーがこの境界の外へ漏れることはありません。

// OrchestratorConfig は呼び出し側が所有する設定値です。
// プロセス全体のシングルトンにはしません。
type OrchestratorConfig struct {
	// ConfirmTimeout は確認ポーリング全体の上限です。
	ConfirmTimeout time.Duration

	// MinBalanceLamports は手数料見積りを賄う参加者残高の下限です。
	// 既定 0.012 SOL（アカウント作成手数料の概算）。
	MinBalanceLamports uint64

	// StrictConfirmation は確認読み取りの commitment を引き上げます。
	StrictConfirmation bool
}

const (
	LamportsPerSOL = 1_000_000_000

	// 0.012 SOL: mint で生成されるアカウント群の作成手数料の概算。
	DefaultMinBalanceLamports uint64 = 12_000_000

	DefaultConfirmTimeout = 30 * time.Second
)

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.MinBalanceLamports == 0 {
		c.MinBalanceLamports = DefaultMinBalanceLamports
	}
	return c
}

// MintResult は Terminal 状態の観測値です。
type MintResult struct {
	Minted      bool               `json:"minted"`
	TxID        string             `json:"txId,omitempty"`
	MetadataKey string             `json:"metadataKey,omitempty"`
	Alert       minting.AlertEvent `json:"alert"`
}

type MintOrchestrator struct {
	leases    *LeaseUsecase
	poller    *ConfirmationPoller
	submitter MintSubmitPort
	accounts  AccountInfoPort
	balances  BalancePort

	attempts AttemptRecorder  // optional
	notifier OperatorNotifier // optional

	cfg OrchestratorConfig
}

func NewMintOrchestrator(
	leases *LeaseUsecase,
	poller *ConfirmationPoller,
	submitter MintSubmitPort,
	accounts AccountInfoPort,
	balances BalancePort,
	cfg OrchestratorConfig,
) *MintOrchestrator {
	return &MintOrchestrator{
		leases:    leases,
		poller:    poller,
		submitter: submitter,
		accounts:  accounts,
		balances:  balances,
		cfg:       cfg.withDefaults(),
	}
}

// WithAttemptRecorder は監査ログを有効化します（任意）。
func (o *MintOrchestrator) WithAttemptRecorder(rec AttemptRecorder) *MintOrchestrator {
	if o != nil {
		o.attempts = rec
	}
	return o
}

// WithOperatorNotifier は stuck リース通知を有効化します（任意）。
func (o *MintOrchestrator) WithOperatorNotifier(n OperatorNotifier) *MintOrchestrator {
	if o != nil {
		o.notifier = n
	}
	return o
}

// ------------------------------------------------------------
// Public API
// ------------------------------------------------------------

// Mint は参加者 1 名のミントを 1 回だけ実行します。
// リース取得 → 送信 → 確認 → 分類 → リース確定、の順で厳密に逐次実行し、
// どの失敗経路でも error ではなく AlertEvent 付きの MintResult を返します。
func (o *MintOrchestrator) Mint(ctx context.Context, participantAddress string) MintResult {
	if o == nil || o.leases == nil || o.poller == nil || o.submitter == nil || o.balances == nil {
		return failureResult(minting.AlertEvent{
			Message:  "Minting is temporarily unavailable. Please try again later.",
			Severity: minting.SeverityError,
		})
	}

	address := strings.TrimSpace(participantAddress)
	if address == "" {
		return failureResult(minting.AlertEvent{
			Message:  "Mint failed! You are not on the whitelist!",
			Severity: minting.SeverityError,
		})
	}

	// ── Idle → LeaseRequested ──────────────────────────────
	entry, err := o.leases.FindLease(ctx, address)
	if err != nil {
		if errors.Is(err, whitelist.ErrNotFound) || errors.Is(err, whitelist.ErrInvalidAddress) {
			o.recordAttempt(ctx, address, "", "", "ineligible", "not on whitelist", nil)
			return failureResult(minting.AlertEvent{
				Message:        "Mint failed! You are not on the whitelist!",
				Severity:       minting.SeverityError,
				HideDurationMS: 8000,
			})
		}
		log.Printf("[orchestrator] whitelist lookup failed: address=%s err=%v", maskShort(address), err)
		return failureResult(minting.AlertEvent{
			Message:  "Mint failed! Please try again!",
			Severity: minting.SeverityError,
		})
	}

	// 残高ゲート。リースに触る前に弾く。
	balance, err := o.balances.GetBalance(ctx, address)
	if err != nil {
		log.Printf("[orchestrator] balance query failed: address=%s err=%v", maskShort(address), err)
		return failureResult(minting.AlertEvent{
			Message:  "Mint failed! Please try again!",
			Severity: minting.SeverityError,
		})
	}
	if balance < o.cfg.MinBalanceLamports {
		o.recordAttempt(ctx, address, "", "", "insufficientBalance", "balance below fee estimation", nil)
		return failureResult(minting.AlertEvent{
			Message:        "Insufficient funds to cover gas and fees!",
			Severity:       minting.SeverityError,
			HideDurationMS: 4000,
		})
	}

	// ── LeaseRequested → Submitting ────────────────────────
	lease, err := o.leases.Acquire(ctx, entry)
	if err != nil {
		if errors.Is(err, whitelist.ErrAlreadyMinting) {
			// 別の試行が生きているか、落ちた試行のリースが残っている。
			// ここで解放してはいけない。オペレーター対応が必要。
			o.recordAttempt(ctx, address, "", "", "alreadyMinting", "lease already held", nil)
			return failureResult(minting.AlertEvent{
				Message:        "Something went wrong with your mint, please contact support!",
				Severity:       minting.SeverityError,
				HideDurationMS: 8000,
			})
		}
		if errors.Is(err, whitelist.ErrAlreadyMinted) {
			o.recordAttempt(ctx, address, "", "", "alreadyMinted", "participant already minted", nil)
			return failureResult(minting.AlertEvent{
				Message:        "You have already minted!",
				Severity:       minting.SeverityInfo,
				HideDurationMS: 4000,
			})
		}
		log.Printf("[orchestrator] lease acquire failed: address=%s err=%v", maskShort(address), err)
		return failureResult(minting.AlertEvent{
			Message:  "Mint failed! Please try again!",
			Severity: minting.SeverityError,
		})
	}

	log.Printf("[orchestrator] lease acquired: address=%s entry=%s", maskShort(address), lease.EntryID)

	// ── Submitting → Confirming ────────────────────────────
	var outcome minting.Outcome

	submission, err := o.submitter.Submit(ctx, address)
	if err != nil {
		// 送信時の即時失敗。確認はスキップして Reconciling へ。
		log.Printf("[orchestrator] submission failed: address=%s err=%v", maskShort(address), err)
		if lerr, ok := minting.AsLedgerError(err); ok {
			outcome = minting.Classify(lerr)
		} else {
			outcome = minting.Failed(minting.ReasonPleaseRetry)
		}
	} else {
		lease.TxID = submission.TxID
		lease.MetadataKey = submission.MetadataKey

		// stuck 時の手動リコンシリエーション用に txId / metadataKey を
		// 先に記録しておく（best-effort、失敗しても試行は続行）。
		if err := o.leases.AttachSubmission(ctx, lease, submission.TxID, submission.MetadataKey); err != nil {
			log.Printf("[orchestrator] attach submission failed: address=%s tx=%s err=%v",
				maskShort(address), maskShort(submission.TxID), err)
		}

		log.Printf("[orchestrator] submitted: address=%s tx=%s mint=%s",
			maskShort(address), maskShort(submission.TxID), maskShort(submission.MintAddress))

		// ── Confirming ─────────────────────────────────────
		outcome = o.poller.Await(ctx, submission.TxID, o.cfg.ConfirmTimeout, o.cfg.StrictConfirmation)

		// 確認が通っても metadata アカウントが実体化していなければ
		// 成功として信用しない。
		if outcome.Kind == minting.OutcomeConfirmed {
			outcome = o.verifyMetadata(ctx, submission, outcome)
		}
	}

	// ── Reconciling → Terminal ─────────────────────────────
	if err := o.leases.Commit(ctx, lease, outcome); err != nil {
		log.Printf("[orchestrator] lease commit failed: address=%s outcome=%s err=%v",
			maskShort(address), outcome.Kind, err)
	}

	if !outcome.Resettable && o.notifier != nil {
		if err := o.notifier.NotifyStuckLease(ctx, address, lease.TxID, outcome.RawCode); err != nil {
			log.Printf("[orchestrator] operator notify failed: address=%s err=%v", maskShort(address), err)
		}
	}

	o.recordAttempt(ctx, address, lease.TxID, lease.MetadataKey, string(outcome.Kind), outcome.Reason, outcome.RawCode)

	alert := alertForOutcome(outcome)
	if outcome.Kind == minting.OutcomeConfirmed {
		log.Printf("[orchestrator] mint succeeded: address=%s tx=%s", maskShort(address), maskShort(lease.TxID))
		return MintResult{Minted: true, TxID: lease.TxID, MetadataKey: lease.MetadataKey, Alert: alert}
	}

	return MintResult{TxID: lease.TxID, MetadataKey: lease.MetadataKey, Alert: alert}
}

// ------------------------------------------------------------
// internal
// ------------------------------------------------------------

// verifyMetadata は確認済みトランザクションの metadata アカウントが
// 実際に存在するかを独立に検証します。存在しない（または確認できない）
// 場合は AmbiguousFailure へ格下げします。
func (o *MintOrchestrator) verifyMetadata(ctx context.Context, sub MintSubmission, confirmed minting.Outcome) minting.Outcome {
	if o.accounts == nil {
		// 検証手段が無い構成では格下げせず確認結果を信用する。
		return confirmed
	}

	exists, err := o.accounts.AccountExists(ctx, sub.MetadataKey, CommitmentProcessed)
	if err != nil {
		log.Printf("[orchestrator] metadata check failed: key=%s err=%v", maskShort(sub.MetadataKey), err)
		return minting.Ambiguous(nil)
	}
	if !exists {
		log.Printf("[orchestrator] metadata account missing after confirmation: key=%s", maskShort(sub.MetadataKey))
		return minting.Ambiguous(nil)
	}
	return confirmed
}

func (o *MintOrchestrator) recordAttempt(ctx context.Context, address, txID, metadataKey, outcome, reason string, rawCode *uint32) {
	if o.attempts == nil {
		return
	}
	rec := MintAttemptRecord{
		Address:     address,
		TxID:        txID,
		MetadataKey: metadataKey,
		Outcome:     outcome,
		Reason:      reason,
		RawCode:     rawCode,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.attempts.RecordAttempt(ctx, rec); err != nil {
		log.Printf("[orchestrator] attempt record failed: address=%s err=%v", maskShort(address), err)
	}
}

// alertForOutcome は ConfirmationOutcome をユーザー向けメッセージへ
// 写像します。生のエラーコードは含めません（ログ専用）。
func alertForOutcome(out minting.Outcome) minting.AlertEvent {
	switch out.Kind {
	case minting.OutcomeConfirmed:
		return minting.AlertEvent{
			Message:  "Congratulations! Mint succeeded!",
			Severity: minting.SeveritySuccess,
		}

	case minting.OutcomeTimedOut:
		return minting.AlertEvent{
			Message:        "Transaction Timeout! Please try again. If a fee was charged, check the explorer before retrying.",
			Severity:       minting.SeverityWarning,
			HideDurationMS: 8000,
		}

	case minting.OutcomeAmbiguous:
		return minting.AlertEvent{
			Message:        "Mint likely failed! Anti-bot SOL 0.01 fee potentially charged! Check the explorer to confirm the mint failed, then contact support.",
			Severity:       minting.SeverityError,
			HideDurationMS: 8000,
		}
	}

	// OutcomeFailed: reason ごとのメッセージ。
	switch out.Reason {
	case minting.ReasonSoldOut:
		return minting.AlertEvent{
			Message:  "SOLD OUT!",
			Severity: minting.SeverityError,
		}
	case minting.ReasonInsufficientFunds:
		return minting.AlertEvent{
			Message:  "Insufficient funds to mint. Please fund your wallet.",
			Severity: minting.SeverityError,
		}
	case minting.ReasonNotStarted:
		return minting.AlertEvent{
			Message:  "Minting period hasn't started yet.",
			Severity: minting.SeverityError,
		}
	}

	return minting.AlertEvent{
		Message:  "Mint failed! Please try again!",
		Severity: minting.SeverityError,
	}
}

func failureResult(alert minting.AlertEvent) MintResult {
	return MintResult{Alert: alert}
}

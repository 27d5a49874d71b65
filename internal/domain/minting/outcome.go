// internal/domain/minting/outcome.go
package minting

import (
	"errors"
	"fmt"
)

// ------------------------------------------------------
// ConfirmationOutcome (tagged result)
// ------------------------------------------------------
//
// 確認ポーラー + 分類器が生成し、オーケストレーターが 1 回だけ消費します。
// Resettable=false の結果はリースを minting のまま残し、
// オペレーターによる手動リコンシリエーションを要求します。

// OutcomeKind は確認結果の種別です。
type OutcomeKind string

const (
	OutcomeConfirmed OutcomeKind = "confirmed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeTimedOut  OutcomeKind = "timedOut"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
)

type Outcome struct {
	Kind OutcomeKind

	// Reason は Failed のユーザー向け失敗理由（"sold out" 等）。
	Reason string

	// RawCode は AmbiguousFailure のオンチェーンエラーコード。
	// ログ専用。ユーザーにそのまま見せてはいけません。
	RawCode *uint32

	// Resettable が true の場合のみリースを notMinted へ戻してよい。
	Resettable bool
}

func Confirmed() Outcome {
	return Outcome{Kind: OutcomeConfirmed, Resettable: true}
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason, Resettable: true}
}

func TimedOut() Outcome {
	return Outcome{Kind: OutcomeTimedOut, Resettable: true}
}

// Ambiguous はオンチェーンの anti-abuse 手数料が徴収された可能性がある
// 不明な失敗です。リースは意図的に解放しません。
func Ambiguous(rawCode *uint32) Outcome {
	return Outcome{Kind: OutcomeAmbiguous, RawCode: rawCode, Resettable: false}
}

// ------------------------------------------------------
// AlertEvent (orchestration 1 回につき 1 イベント)
// ------------------------------------------------------

const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// AlertEvent はユーザーに表示する結果です。永続化しません。
// 表示側（スナックバー等）はこの値への純粋な反応として実装されます。
type AlertEvent struct {
	Message        string `json:"message"`
	Severity       string `json:"severity"`
	HideDurationMS int    `json:"hideDurationMs,omitempty"`
}

// ------------------------------------------------------
// LedgerError (構造化されたレジャー側エラー)
// ------------------------------------------------------
//
// RPC の err オブジェクトから抽出した構造化エラー。
// 分類はこの構造のみで行い、メッセージ文字列の部分一致には依存しません。

type LedgerError struct {
	// Custom はオンチェーンプログラムのカスタムエラーコード
	// （InstructionError の Custom 値）。無い場合は nil。
	Custom *uint32

	// Message は RPC が返した生メッセージ。ログ専用。
	Message string
}

func (e *LedgerError) Error() string {
	if e == nil {
		return "ledger error: <nil>"
	}
	if e.Custom != nil {
		return fmt.Sprintf("ledger error: custom=0x%x message=%s", *e.Custom, e.Message)
	}
	return fmt.Sprintf("ledger error: message=%s", e.Message)
}

// AsLedgerError はラップ済みの err から *LedgerError を取り出します。
func AsLedgerError(err error) (*LedgerError, bool) {
	if err == nil {
		return nil, false
	}
	var lerr *LedgerError
	if errors.As(err, &lerr) {
		return lerr, true
	}
	return nil, false
}

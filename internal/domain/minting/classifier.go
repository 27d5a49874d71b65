// internal/domain/minting/classifier.go
package minting

// ------------------------------------------------------
// Outcome Classifier
// ------------------------------------------------------
//
// 既知のオンチェーン条件コードをユーザー向けの意味に写像します。
// コード値はミントプログラム（candy machine）のカスタムエラーです:
//
//	0x135 (309) : 残高不足でミントできない
//	0x137 (311) : 供給枯渇（sold out）
//	0x138 (312) : ミント期間が未開始
//
// 上記以外のカスタムコードは「手数料だけ徴収された可能性がある」
// 不明な失敗として AmbiguousFailure に落とします。
// コードを持たないエラー（RPC 拒否等）は再試行可能な一般失敗、
// エラー情報が一切無いものはタイムアウト扱いです。

const (
	CodeInsufficientFunds uint32 = 0x135 // 309
	CodeSoldOut           uint32 = 0x137 // 311
	CodeMintNotLive       uint32 = 0x138 // 312
)

// 分類結果の Reason 値。AlertEvent のメッセージはこの値から引きます。
const (
	ReasonSoldOut           = "sold out"
	ReasonInsufficientFunds = "insufficient funds"
	ReasonNotStarted        = "not started"
	ReasonPleaseRetry       = "please retry"
)

// Classify はレジャー側エラーを ConfirmationOutcome へ写像します。
// lerr が nil の場合（エラーコードが一切無い = 送信がレジャーに届く前の
// ネットワークタイムアウト等）は TimedOut を返します。
func Classify(lerr *LedgerError) Outcome {
	if lerr == nil {
		return TimedOut()
	}

	if lerr.Custom != nil {
		switch *lerr.Custom {
		case CodeSoldOut:
			return Failed(ReasonSoldOut)
		case CodeInsufficientFunds:
			return Failed(ReasonInsufficientFunds)
		case CodeMintNotLive:
			return Failed(ReasonNotStarted)
		default:
			// 未知のカスタムコード: anti-abuse 手数料が徴収されていても
			// ミントは完了していない可能性がある。リースは解放しない。
			return Ambiguous(lerr.Custom)
		}
	}

	// コード無し・メッセージのみ → 再試行可能な一般失敗。
	return Failed(ReasonPleaseRetry)
}

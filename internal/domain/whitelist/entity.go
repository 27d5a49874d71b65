// internal/domain/whitelist/entity.go
package whitelist

import (
	"errors"
	"strings"
	"time"
)

// ------------------------------------------------------
// Entity: Entry (whitelist コレクション 1 ドキュメント)
// ------------------------------------------------------
//
// 想定ドキュメント構造:
//
// - address     : string     // 参加者ウォレットアドレス (base58, 一意)
// - status      : string     // "notMinted" | "minting" | "minted"
// - txId        : string     // 送信済みトランザクション署名（任意）
// - metadataKey : string     // ミントされたアセットの metadata アカウント（任意）
// - updatedAt   : time.Time
//
// エントリの作成（ホワイトリスト登録）は外部のプロビジョニングが担当し、
// このサービスは status / txId / metadataKey の遷移のみを行います。

// Status はホワイトリストエントリのミント状態です。
// "minting" は 1 参加者 1 試行を守るための協調的リースとして機能します。
type Status string

const (
	StatusNotMinted Status = "notMinted"
	StatusMinting   Status = "minting"
	StatusMinted    Status = "minted"
)

// Valid は既知のステータス値かどうかを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusNotMinted, StatusMinting, StatusMinted:
		return true
	}
	return false
}

type Entry struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Status      Status    `json:"status"`
	TxID        string    `json:"txId,omitempty"`
	MetadataKey string    `json:"metadataKey,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	ErrNotFound       = errors.New("whitelist: entry not found")
	ErrInvalidAddress = errors.New("whitelist: invalid address")
	ErrInvalidStatus  = errors.New("whitelist: invalid status")

	// ErrStatusConflict は compare-and-set の expected が実際の status と
	// 一致しなかったことを表します（別プロセスが先に書き込んだ等）。
	ErrStatusConflict = errors.New("whitelist: status conflict")

	// ErrAlreadyMinting は status=minting のエントリへの取得要求。
	// 別の試行が生きているか、クリーンアップされずに落ちた試行が残っています。
	ErrAlreadyMinting = errors.New("whitelist: already minting")

	// ErrAlreadyMinted はミント済み参加者の再取得要求です。
	ErrAlreadyMinted = errors.New("whitelist: already minted")
)

// ------------------------------------------------------
// Behavior
// ------------------------------------------------------

// CanTransitionTo はエントリの状態遷移が許可されているかを返します。
// 許可される遷移:
//   - notMinted → minting
//   - minting   → minted
//   - minting   → notMinted （リース解放 / 再試行可能な失敗）
func (e Entry) CanTransitionTo(next Status) bool {
	switch e.Status {
	case StatusNotMinted:
		return next == StatusMinting
	case StatusMinting:
		return next == StatusMinted || next == StatusNotMinted
	}
	return false
}

// Validate はエントリの一貫性チェックを公開します。
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Address) == "" {
		return ErrInvalidAddress
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

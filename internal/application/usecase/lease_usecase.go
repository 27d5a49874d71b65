// internal/application/usecase/lease_usecase.go
package usecase

import (
	"context"
	"errors"
	"log"
	"strings"

	"candyhouse/internal/domain/minting"
	"candyhouse/internal/domain/whitelist"
)

// ============================================================
// LeaseUsecase
// ============================================================
//
// 参加者ごとの排他的ミントリースを管理します。
// リースの実体は whitelist エントリの status フィールドで、
// すべての遷移はリポジトリの compare-and-set を経由します。
// ここではエントリをキャッシュしません。毎回読み直してから CAS します。

var ErrLeaseUsecaseNil = errors.New("lease usecase is nil")

// Lease は取得済みリースのハンドルです。1 回のオーケストレーション
// 呼び出しが所有し、Commit で消費されます。
type Lease struct {
	EntryID string
	Address string

	// 送信後に埋まる値。Commit(Confirmed) で永続化されます。
	TxID        string
	MetadataKey string
}

type LeaseUsecase struct {
	repo whitelist.Repository
}

func NewLeaseUsecase(repo whitelist.Repository) *LeaseUsecase {
	return &LeaseUsecase{repo: repo}
}

// FindLease は参加者のホワイトリストエントリを検索します。
// 未登録は whitelist.ErrNotFound（エラーではなく参加資格なしの確定）。
func (u *LeaseUsecase) FindLease(ctx context.Context, address string) (whitelist.Entry, error) {
	if u == nil || u.repo == nil {
		return whitelist.Entry{}, ErrLeaseUsecaseNil
	}

	addr := strings.TrimSpace(address)
	if addr == "" {
		return whitelist.Entry{}, whitelist.ErrInvalidAddress
	}

	return u.repo.FindByAddress(ctx, addr)
}

// Acquire は notMinted → minting の CAS でリースを取得します。
//   - status=minting  : 別の試行が生きている（または落ちて残った）→ ErrAlreadyMinting
//   - status=minted   : ミント済み参加者の再突入 → ErrAlreadyMinted
//   - CAS 競合        : 読み取りと書き込みの間に別プロセスが先行 → ErrAlreadyMinting
func (u *LeaseUsecase) Acquire(ctx context.Context, e whitelist.Entry) (Lease, error) {
	if u == nil || u.repo == nil {
		return Lease{}, ErrLeaseUsecaseNil
	}

	switch e.Status {
	case whitelist.StatusMinting:
		return Lease{}, whitelist.ErrAlreadyMinting
	case whitelist.StatusMinted:
		return Lease{}, whitelist.ErrAlreadyMinted
	}

	err := u.repo.CompareAndSetStatus(ctx, e.ID, whitelist.StatusNotMinted, whitelist.StatusPatch{
		Status: whitelist.StatusMinting,
	})
	if err != nil {
		if errors.Is(err, whitelist.ErrStatusConflict) {
			// 自分が読んでから書くまでの間に別の試行が minting を書いた。
			return Lease{}, whitelist.ErrAlreadyMinting
		}
		return Lease{}, err
	}

	return Lease{EntryID: e.ID, Address: e.Address}, nil
}

// AttachSubmission は送信直後に txId / metadataKey をエントリへ記録します。
// status は minting のまま変えません。リースが stuck した場合に
// チェーンと突き合わせてリコンシリエーションするための記録です。
func (u *LeaseUsecase) AttachSubmission(ctx context.Context, lease Lease, txID, metadataKey string) error {
	if u == nil || u.repo == nil {
		return ErrLeaseUsecaseNil
	}

	tx := strings.TrimSpace(txID)
	mk := strings.TrimSpace(metadataKey)

	return u.repo.CompareAndSetStatus(ctx, lease.EntryID, whitelist.StatusMinting, whitelist.StatusPatch{
		Status:      whitelist.StatusMinting,
		TxID:        &tx,
		MetadataKey: &mk,
	})
}

// Commit は確認結果に従ってリースを確定します。
//   - Confirmed            : minting → minted（txId / metadataKey も永続化）
//   - 再試行可能な失敗      : minting → notMinted（リース解放）
//   - Resettable=false     : status は minting のまま残す。
//     anti-abuse 手数料が徴収済みの可能性があるため、勝手に解放して
//     オンチェーン状態と矛盾する無料リトライを許してはいけない。
func (u *LeaseUsecase) Commit(ctx context.Context, lease Lease, out minting.Outcome) error {
	if u == nil || u.repo == nil {
		return ErrLeaseUsecaseNil
	}

	if out.Kind == minting.OutcomeConfirmed {
		return u.repo.CompareAndSetStatus(ctx, lease.EntryID, whitelist.StatusMinting, whitelist.StatusPatch{
			Status:      whitelist.StatusMinted,
			TxID:        &lease.TxID,
			MetadataKey: &lease.MetadataKey,
		})
	}

	if !out.Resettable {
		// 意図的に何も書かない。オペレーター対応待ち。
		log.Printf("[lease] leaving lease stuck (manual reconciliation required): address=%s entry=%s",
			maskShort(lease.Address), lease.EntryID)
		return nil
	}

	return u.repo.CompareAndSetStatus(ctx, lease.EntryID, whitelist.StatusMinting, whitelist.StatusPatch{
		Status: whitelist.StatusNotMinted,
	})
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}

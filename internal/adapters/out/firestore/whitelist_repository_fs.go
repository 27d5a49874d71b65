// internal/adapters/out/firestore/whitelist_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	wldom "candyhouse/internal/domain/whitelist"
)

// WhitelistRepositoryFS implements whitelist.Repository using Firestore.
//
// 1 ドキュメント = 1 参加者。status の遷移は必ず RunTransaction 内の
// 読み直し + 条件付き書き込み（compare-and-set）で行います。
// 事前読み取りを信用した無条件 Set は使いません。
type WhitelistRepositoryFS struct {
	Client     *firestore.Client
	Collection string
}

const defaultWhitelistCollection = "whitelist"

// インターフェース実装チェック
var _ wldom.Repository = (*WhitelistRepositoryFS)(nil)

func NewWhitelistRepositoryFS(client *firestore.Client, collection string) *WhitelistRepositoryFS {
	col := strings.TrimSpace(collection)
	if col == "" {
		col = defaultWhitelistCollection
	}
	return &WhitelistRepositoryFS{Client: client, Collection: col}
}

// FindByAddress は address フィールドの一致でエントリを 1 件検索します。
// 未登録は wldom.ErrNotFound。
func (r *WhitelistRepositoryFS) FindByAddress(ctx context.Context, address string) (wldom.Entry, error) {
	if r == nil || r.Client == nil {
		return wldom.Entry{}, errors.New("firestore client is nil")
	}

	addr := strings.TrimSpace(address)
	if addr == "" {
		return wldom.Entry{}, wldom.ErrInvalidAddress
	}

	iter := r.Client.Collection(r.Collection).
		Where("address", "==", addr).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	docs, err := iter.GetAll()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return wldom.Entry{}, wldom.ErrNotFound
		}
		return wldom.Entry{}, err
	}
	if len(docs) == 0 {
		return wldom.Entry{}, wldom.ErrNotFound
	}

	return docToEntry(docs[0])
}

// CompareAndSetStatus はトランザクション内で status を読み直し、
// expected と一致した場合のみ patch を書き込みます。
// 一致しなければ wldom.ErrStatusConflict、ドキュメントが無ければ
// wldom.ErrNotFound を返します。
func (r *WhitelistRepositoryFS) CompareAndSetStatus(
	ctx context.Context,
	id string,
	expected wldom.Status,
	patch wldom.StatusPatch,
) error {
	if r == nil || r.Client == nil {
		return errors.New("firestore client is nil")
	}

	docID := strings.TrimSpace(id)
	if docID == "" {
		return wldom.ErrNotFound
	}
	if !patch.Status.Valid() {
		return wldom.ErrInvalidStatus
	}

	ref := r.Client.Collection(r.Collection).Doc(docID)

	return r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return wldom.ErrNotFound
			}
			return err
		}

		current := readStatus(snap)
		if current != expected {
			return wldom.ErrStatusConflict
		}

		updates := []firestore.Update{
			{Path: "status", Value: string(patch.Status)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}
		if patch.TxID != nil {
			updates = append(updates, firestore.Update{Path: "txId", Value: strings.TrimSpace(*patch.TxID)})
		}
		if patch.MetadataKey != nil {
			updates = append(updates, firestore.Update{Path: "metadataKey", Value: strings.TrimSpace(*patch.MetadataKey)})
		}

		return tx.Update(ref, updates)
	})
}

// =====================================================
// Helpers (Firestore -> Domain)
// =====================================================

func docToEntry(doc *firestore.DocumentSnapshot) (wldom.Entry, error) {
	data := doc.Data()
	if data == nil {
		return wldom.Entry{}, wldom.ErrNotFound
	}

	getStr := func(key string) string {
		if v, ok := data[key].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}

	e := wldom.Entry{
		ID:          doc.Ref.ID,
		Address:     getStr("address"),
		Status:      wldom.Status(getStr("status")),
		TxID:        getStr("txId"),
		MetadataKey: getStr("metadataKey"),
	}

	if v, ok := data["updatedAt"].(time.Time); ok {
		e.UpdatedAt = v
	}

	// プロビジョニング直後など status 未設定のドキュメントは
	// notMinted として扱う。
	if e.Status == "" {
		e.Status = wldom.StatusNotMinted
	}

	if err := e.Validate(); err != nil {
		return wldom.Entry{}, err
	}
	return e, nil
}

func readStatus(snap *firestore.DocumentSnapshot) wldom.Status {
	data := snap.Data()
	if data == nil {
		return wldom.StatusNotMinted
	}
	if v, ok := data["status"].(string); ok {
		s := wldom.Status(strings.TrimSpace(v))
		if s == "" {
			return wldom.StatusNotMinted
		}
		return s
	}
	return wldom.StatusNotMinted
}

// internal/domain/whitelist/repository_port.go
package whitelist

import "context"

// ------------------------------------------------------
// Repository Port for whitelist entries
// ------------------------------------------------------
//
// Hexagonal Architecture における「出力ポート」。
// Firestore などの具体的な永続化実装は adapters/out 側で実装し、
// ドメイン層からはこのインターフェースのみを参照します。
//
// 重要: 状態遷移は必ず CompareAndSetStatus を経由すること。
// 事前の読み取り結果を信用した無条件書き込みは、2 プロセスが同時に
// notMinted を読んでから両方 minting を書けてしまうため禁止です。

// StatusPatch は CompareAndSetStatus で書き込むフィールド群です。
// TxID / MetadataKey は nil なら既存値を保持します。
type StatusPatch struct {
	Status      Status
	TxID        *string
	MetadataKey *string
}

// Repository は whitelist コレクションへの永続化ポートです。
type Repository interface {
	// FindByAddress:
	// - 参加者アドレスでエントリを 1 件検索します。
	// - 未登録の場合は ErrNotFound を返します。
	FindByAddress(ctx context.Context, address string) (Entry, error)

	// CompareAndSetStatus:
	// - ドキュメントの現在の status が expected と一致する場合のみ
	//   patch を書き込みます（単一ドキュメントのトランザクション内）。
	// - 一致しない場合は ErrStatusConflict を返し、何も書き込みません。
	// - ドキュメントが存在しない場合は ErrNotFound を返します。
	CompareAndSetStatus(ctx context.Context, id string, expected Status, patch StatusPatch) error
}

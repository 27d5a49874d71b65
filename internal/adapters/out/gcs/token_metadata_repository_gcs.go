// internal/adapters/out/gcs/token_metadata_repository_gcs.go
package gcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	solanainfra "candyhouse/internal/infra/solana"
)

// GCS-based implementation of solana.MetadataURIStore.
// - One GCS object represents one asset's metadata.json.
// - Object name is "<mintAddress>.json".
// - The returned URI is the public storage URL used on-chain.
type TokenMetadataRepositoryGCS struct {
	Client *storage.Client
	Bucket string
}

// インターフェース実装チェック
var _ solanainfra.MetadataURIStore = (*TokenMetadataRepositoryGCS)(nil)

func NewTokenMetadataRepositoryGCS(client *storage.Client, bucket string) *TokenMetadataRepositoryGCS {
	return &TokenMetadataRepositoryGCS{
		Client: client,
		Bucket: strings.TrimSpace(bucket),
	}
}

// PutMetadata は metadata.json を書き込み、公開 URL を返します。
// 同じ mint アドレスへの再書き込みは上書きです（mint keypair は
// 呼び出しごとに新規生成されるため実際には衝突しません）。
func (r *TokenMetadataRepositoryGCS) PutMetadata(ctx context.Context, mintAddress string, doc []byte) (string, error) {
	if r == nil || r.Client == nil {
		return "", errors.New("TokenMetadataRepositoryGCS: nil storage client")
	}

	bucket := strings.TrimSpace(r.Bucket)
	if bucket == "" {
		return "", errors.New("TokenMetadataRepositoryGCS: bucket is empty")
	}

	mint := strings.TrimSpace(mintAddress)
	if mint == "" {
		return "", errors.New("TokenMetadataRepositoryGCS: mint address is empty")
	}

	objectPath := mint + ".json"

	w := r.Client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "public, max-age=31536000"

	if _, err := w.Write(doc); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write metadata object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close metadata object: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath), nil
}

// internal/infra/solana/mint_authority_loader.go
package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	smpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"
)

// MintAuthority は Candyhouse が唯一保持するミント権限ウォレットです。
// fee payer / mint authority / update authority を兼ねます。
type MintAuthority struct {
	Account types.Account
}

// LoadMintAuthority は GCP Secret Manager から鍵ペア JSON（[int,...] 形式、
// solana-keygen の出力と同じ 64 バイト配列）を読み込み復元します。
//
// projectID: GCP プロジェクト ID
// secretID : 例 "candyhouse-mint-authority"
func LoadMintAuthority(
	ctx context.Context,
	projectID string,
	secretID string,
) (*MintAuthority, error) {

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID)

	res, err := client.AccessSecretVersion(ctx, &smpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("access secret version %s: %w", name, err)
	}

	var ints []int
	if err := json.Unmarshal(res.Payload.Data, &ints); err != nil {
		return nil, fmt.Errorf("unmarshal secret json: %w", err)
	}

	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("unexpected secret key length: got %d, want %d", len(ints), ed25519.PrivateKeySize)
	}

	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("secret key byte out of range at %d: %d", i, v)
		}
		b[i] = byte(v)
	}

	acc, err := types.AccountFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("AccountFromBytes: %w", err)
	}

	return &MintAuthority{Account: acc}, nil
}

// internal/infra/solana/nft_mint_submitter.go
package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	usecase "candyhouse/internal/application/usecase"
)

var (
	ErrSubmitterNotConfigured = errors.New("nft_mint_submitter: not configured")
	ErrParticipantEmpty       = errors.New("nft_mint_submitter: participant address is empty")
)

// MetadataURIStore はアセット 1 件分の metadata.json を置き、
// オンチェーン metadata アカウントに書く URI を返すポートです。
// 実装は adapters/out/gcs。nil の場合は BaseURI から組み立てます。
type MetadataURIStore interface {
	PutMetadata(ctx context.Context, mintAddress string, doc []byte) (string, error)
}

// TokenMetadataConfig はミントする NFT の固定メタデータです。
type TokenMetadataConfig struct {
	Name                 string
	Symbol               string
	SellerFeeBasisPoints uint16

	// BaseURI は MetadataURIStore が無い構成でのフォールバック。
	// <BaseURI>/<mintAddress>.json を URI として使います。
	BaseURI string
}

// NFTMintSubmitter は usecase.MintSubmitPort の実装です。
// 1 参加者 = 1 NFT（MaxSupply=1 の MasterEdition）をプロトコルで固定します。
type NFTMintSubmitter struct {
	RPC       *client.Client // 構築系 RPC（rent / blockhash）
	Sender    *JSONRPCClient // 送信。構造化エラーを取り出すため raw RPC を使う
	Authority *MintAuthority
	Metadata  TokenMetadataConfig
	URIStore  MetadataURIStore // optional

	// ミント本体の前後に差し込む追加 instruction（任意）。
	// 例: anti-bot 手数料の transfer、ComputeBudget 設定など。
	PreInstructions  []types.Instruction
	PostInstructions []types.Instruction
}

// インターフェース実装チェック
var _ usecase.MintSubmitPort = (*NFTMintSubmitter)(nil)

// NewNFTMintSubmitter は送信コラボレーターを初期化します。
// rpcEndpoint が空なら devnet を使います。
func NewNFTMintSubmitter(
	rpcEndpoint string,
	authority *MintAuthority,
	meta TokenMetadataConfig,
	uriStore MetadataURIStore,
) *NFTMintSubmitter {
	ep := strings.TrimSpace(rpcEndpoint)
	if ep == "" {
		ep = DevnetEndpoint
	}
	return &NFTMintSubmitter{
		RPC:       client.NewClient(ep),
		Sender:    NewJSONRPCClient(ep),
		Authority: authority,
		Metadata:  meta,
		URIStore:  uriStore,
	}
}

// Submit はミントトランザクションを構築・署名・送信します。
//   - 新しい mint アカウントの keypair をこの呼び出しで生成
//   - mint 作成 / 初期化 / Metadata V3 / 参加者 ATA / MintTo(1) / MasterEdition
//   - fee payer = ミント権限ウォレット
//
// 送信が同期的に拒否された場合は error を返します。可能であれば
// *minting.LedgerError がラップされており、オーケストレーターが
// そのまま分類できます。
func (s *NFTMintSubmitter) Submit(ctx context.Context, participantAddress string) (usecase.MintSubmission, error) {
	if s == nil || s.RPC == nil || s.Sender == nil || s.Authority == nil {
		return usecase.MintSubmission{}, ErrSubmitterNotConfigured
	}

	ownerAddr := strings.TrimSpace(participantAddress)
	if ownerAddr == "" {
		return usecase.MintSubmission{}, ErrParticipantEmpty
	}

	feePayer := s.Authority.Account
	owner := common.PublicKeyFromString(ownerAddr)
	mint := types.NewAccount() // NFT 用 mint アカウントを新規作成

	ata, _, err := common.FindAssociatedTokenAddress(owner, mint.PublicKey)
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("FindAssociatedTokenAddress: %w", err)
	}

	metadataPubkey, err := token_metadata.GetTokenMetaPubkey(mint.PublicKey)
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("GetTokenMetaPubkey: %w", err)
	}
	masterEditionPubkey, err := token_metadata.GetMasterEdition(mint.PublicKey)
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("GetMasterEdition: %w", err)
	}

	uri, err := s.resolveMetadataURI(ctx, mint.PublicKey.ToBase58())
	if err != nil {
		return usecase.MintSubmission{}, err
	}

	mintRent, err := s.RPC.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("GetMinimumBalanceForRentExemption: %w", err)
	}

	recent, err := s.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("GetLatestBlockhash: %w", err)
	}

	// 1 参加者 = 1 トークンをプロトコルで固定（MaxSupply = 1）
	maxSupply := uint64(1)

	instructions := append([]types.Instruction{}, s.PreInstructions...)
	instructions = append(instructions,
		// 1) Mint アカウント作成
		system.CreateAccount(system.CreateAccountParam{
			From:     feePayer.PublicKey,
			New:      mint.PublicKey,
			Owner:    common.TokenProgramID,
			Lamports: mintRent,
			Space:    token.MintAccountSize,
		}),
		// 2) Mint 初期化 (decimals = 0)
		token.InitializeMint(token.InitializeMintParam{
			Decimals:   0,
			Mint:       mint.PublicKey,
			MintAuth:   feePayer.PublicKey,
			FreezeAuth: &feePayer.PublicKey,
		}),
		// 3) Metaplex Metadata アカウント作成
		token_metadata.CreateMetadataAccountV3(
			token_metadata.CreateMetadataAccountV3Param{
				Metadata:                metadataPubkey,
				Mint:                    mint.PublicKey,
				MintAuthority:           feePayer.PublicKey,
				UpdateAuthority:         feePayer.PublicKey,
				Payer:                   feePayer.PublicKey,
				UpdateAuthorityIsSigner: true,
				IsMutable:               true,
				Data: token_metadata.DataV2{
					Name:                 s.Metadata.Name,
					Symbol:               s.Metadata.Symbol,
					Uri:                  uri,
					SellerFeeBasisPoints: s.Metadata.SellerFeeBasisPoints,
					Creators: &[]token_metadata.Creator{
						{
							Address:  feePayer.PublicKey,
							Verified: true,
							Share:    100,
						},
					},
				},
				CollectionDetails: nil,
			},
		),
		// 4) 参加者の ATA 作成
		associated_token_account.CreateAssociatedTokenAccount(
			associated_token_account.CreateAssociatedTokenAccountParam{
				Funder:                 feePayer.PublicKey,
				Owner:                  owner,
				Mint:                   mint.PublicKey,
				AssociatedTokenAccount: ata,
			},
		),
		// 5) NFT を 1 枚ミント
		token.MintTo(token.MintToParam{
			Mint:   mint.PublicKey,
			To:     ata,
			Auth:   feePayer.PublicKey,
			Amount: 1,
		}),
		// 6) MasterEdition v3 作成 (MaxSupply=1)
		token_metadata.CreateMasterEditionV3(
			token_metadata.CreateMasterEditionParam{
				Edition:         masterEditionPubkey,
				Mint:            mint.PublicKey,
				UpdateAuthority: feePayer.PublicKey,
				MintAuthority:   feePayer.PublicKey,
				Metadata:        metadataPubkey,
				Payer:           feePayer.PublicKey,
				MaxSupply:       &maxSupply,
			},
		),
	)
	instructions = append(instructions, s.PostInstructions...)

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{mint, feePayer},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        feePayer.PublicKey,
			RecentBlockhash: recent.Blockhash,
			Instructions:    instructions,
		}),
	})
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("NewTransaction: %w", err)
	}

	raw, err := tx.Serialize()
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("serialize transaction: %w", err)
	}

	sig, err := s.Sender.SendRawTransaction(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		return usecase.MintSubmission{}, fmt.Errorf("send transaction: %w", err)
	}

	log.Printf("[nft_mint] submitted: owner=%s mint=%s tx=%s",
		maskShort(ownerAddr), maskShort(mint.PublicKey.ToBase58()), maskShort(sig))

	return usecase.MintSubmission{
		TxID:        sig,
		MintAddress: mint.PublicKey.ToBase58(),
		MetadataKey: metadataPubkey.ToBase58(),
	}, nil
}

// resolveMetadataURI は metadata.json を URIStore に置いて URI を得ます。
// URIStore が無い場合は BaseURI から規約ベースで組み立てます。
func (s *NFTMintSubmitter) resolveMetadataURI(ctx context.Context, mintAddress string) (string, error) {
	if s.URIStore == nil {
		base := strings.TrimRight(strings.TrimSpace(s.Metadata.BaseURI), "/")
		if base == "" {
			return "", fmt.Errorf("nft_mint_submitter: no metadata store and no base URI")
		}
		return base + "/" + mintAddress + ".json", nil
	}

	doc, err := json.Marshal(map[string]any{
		"name":                   s.Metadata.Name,
		"symbol":                 s.Metadata.Symbol,
		"seller_fee_basis_points": s.Metadata.SellerFeeBasisPoints,
	})
	if err != nil {
		return "", fmt.Errorf("marshal metadata doc: %w", err)
	}

	uri, err := s.URIStore.PutMetadata(ctx, mintAddress, doc)
	if err != nil {
		return "", fmt.Errorf("put metadata: %w", err)
	}
	return uri, nil
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

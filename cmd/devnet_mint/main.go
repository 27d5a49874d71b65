// cmd/devnet_mint/main.go
package main

import (
	"context"
	"flag"
	"log"

	"candyhouse/internal/platform/di"
)

// devnet ミント疎通用コマンド。
// Cloud Run と同じ Config / Secret Manager 設定でオーケストレーターを
// 1 回だけ走らせ、結果のアラートを表示します。
//
// 実行例:
//
//	SOLANA_RPC_ENDPOINT=https://api.devnet.solana.com \
//	go run ./cmd/devnet_mint -address <participant-wallet>
func main() {
	address := flag.String("address", "", "participant wallet address (base58)")
	flag.Parse()

	if *address == "" {
		log.Fatalf("[devnet-mint] -address is required")
	}

	ctx := context.Background()

	container, err := di.NewContainer(ctx)
	if err != nil {
		log.Fatalf("[devnet-mint] failed to init container: %v", err)
	}
	defer container.Close()

	res := container.Orchestrator.Mint(ctx, *address)

	log.Printf("[devnet-mint] minted=%v txId=%s metadataKey=%s", res.Minted, res.TxID, res.MetadataKey)
	log.Printf("[devnet-mint] alert: severity=%s hideAfter=%dms", res.Alert.Severity, res.Alert.HideDurationMS)
	log.Printf("[devnet-mint] %s", res.Alert.Message)
}

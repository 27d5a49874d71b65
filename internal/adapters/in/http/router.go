// internal/adapters/in/http/router.go
package http

import (
	"log"
	"net/http"

	"candyhouse/internal/adapters/in/http/handler"
	"candyhouse/internal/adapters/in/http/middleware"
	usecase "candyhouse/internal/application/usecase"
)

// RouterDeps は DI コンテナからルーターへ渡す依存の束です。
type RouterDeps struct {
	Orchestrator *usecase.MintOrchestrator
	Leases       *usecase.LeaseUsecase

	// FirebaseAuth が nil の場合、mint エンドポイントは未認証で
	// マウントされます（ローカル開発用。boot ログに WARN が出ます）。
	FirebaseAuth *middleware.FirebaseAuthClient
}

// NewRouter はアプリケーションのルートハンドラを組み立てます。
// チェーン: Recover → (auth) → handler。CORS は main 側で最外殻に付けます。
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mintHandler := handler.NewMintHandler(deps.Orchestrator)
	if deps.FirebaseAuth != nil {
		auth := &middleware.ParticipantAuthMiddleware{FirebaseAuth: deps.FirebaseAuth}
		mux.Handle("/mint", auth.Handler(mintHandler))
	} else {
		log.Printf("[router] WARN: firebase auth is not configured; /mint is unauthenticated")
		mux.Handle("/mint", mintHandler)
	}

	mux.Handle("/whitelist/status", handler.NewWhitelistHandler(deps.Leases))

	return middleware.Recover(mux)
}

// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"

	"cloud.google.com/go/storage"

	httpin "candyhouse/internal/adapters/in/http"
	"candyhouse/internal/adapters/in/http/middleware"
	dbrepo "candyhouse/internal/adapters/out/db"
	fsrepo "candyhouse/internal/adapters/out/firestore"
	gcsrepo "candyhouse/internal/adapters/out/gcs"
	mailout "candyhouse/internal/adapters/out/mail"
	usecase "candyhouse/internal/application/usecase"
	appcfg "candyhouse/internal/infra/config"
	"candyhouse/internal/infra/database"
	firestoreinfra "candyhouse/internal/infra/firestore"
	solanainfra "candyhouse/internal/infra/solana"
)

// Container は main から使う依存オブジェクトの束です。
// 目的: main.go を極限まで薄くすること。
//
// 必須依存（Firestore / ミント権限キー）の初期化失敗はエラーとして
// 返します。任意依存（Postgres 監査ログ / SendGrid / GCS / Firebase
// Auth）は設定が無ければ WARN ログを出して無効のまま進みます。
type Container struct {
	Config *appcfg.Config

	Orchestrator *usecase.MintOrchestrator
	Leases       *usecase.LeaseUsecase

	FirebaseAuth *middleware.FirebaseAuthClient

	firestore *firestoreinfra.ClientWrapper
	db        *database.DB
	gcs       *storage.Client
}

// NewContainer は DI コンテナを初期化して返します。
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := appcfg.Load()
	c := &Container{Config: cfg}

	// ------------------------------------------------------------
	// 1. Firestore (whitelist record store) — 必須
	// ------------------------------------------------------------
	if cfg.FirestoreProjectID == "" {
		return nil, fmt.Errorf("di: FIRESTORE_PROJECT_ID (or GCP_PROJECT_ID) is required")
	}
	fsw, err := firestoreinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("di: init firestore: %w", err)
	}
	c.firestore = fsw

	whitelistRepo := fsrepo.NewWhitelistRepositoryFS(fsw.Client, cfg.WhitelistCollection)
	c.Leases = usecase.NewLeaseUsecase(whitelistRepo)

	// ------------------------------------------------------------
	// 2. Solana — 必須（ミント権限キー + RPC）
	// ------------------------------------------------------------
	authority, err := solanainfra.LoadMintAuthority(ctx, cfg.GCPProjectID, cfg.MintAuthoritySecretID)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("di: load mint authority: %w", err)
	}

	rpc := solanainfra.NewJSONRPCClient(cfg.SolanaRPCEndpoint)

	// ------------------------------------------------------------
	// 3. GCS metadata store — 任意
	// ------------------------------------------------------------
	var uriStore solanainfra.MetadataURIStore
	if cfg.TokenMetadataBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("di: init gcs: %w", err)
		}
		c.gcs = gcsClient
		uriStore = gcsrepo.NewTokenMetadataRepositoryGCS(gcsClient, cfg.TokenMetadataBucket)
		log.Printf("✅ GCS metadata store enabled (bucket: %s)", cfg.TokenMetadataBucket)
	} else {
		log.Printf("[di] WARN: TOKEN_METADATA_BUCKET is empty; metadata URIs will use TOKEN_METADATA_BASE_URI convention")
	}

	submitter := solanainfra.NewNFTMintSubmitter(
		cfg.SolanaRPCEndpoint,
		authority,
		solanainfra.TokenMetadataConfig{
			Name:                 cfg.TokenName,
			Symbol:               cfg.TokenSymbol,
			SellerFeeBasisPoints: cfg.SellerFeeBasisPoints,
			BaseURI:              cfg.TokenMetadataBaseURI,
		},
		uriStore,
	)

	// ------------------------------------------------------------
	// 4. Orchestrator
	// ------------------------------------------------------------
	poller := usecase.NewConfirmationPoller(rpc, cfg.PollInterval)

	c.Orchestrator = usecase.NewMintOrchestrator(
		c.Leases,
		poller,
		submitter,
		rpc,
		rpc,
		usecase.OrchestratorConfig{
			ConfirmTimeout:     cfg.ConfirmTimeout,
			MinBalanceLamports: cfg.MinBalanceLamports,
			StrictConfirmation: cfg.StrictConfirmation,
		},
	)

	// ------------------------------------------------------------
	// 5. Optional: Postgres 監査ログ
	// ------------------------------------------------------------
	if cfg.DatabaseURL != "" {
		dbw, err := database.NewConnection(cfg.DatabaseURL)
		if err != nil {
			log.Printf("[di] WARN: audit db init failed (attempt log disabled): %v", err)
		} else {
			c.db = dbw
			attempts := dbrepo.NewMintAttemptRepositoryPG(dbw.Client)
			if err := attempts.EnsureSchema(ctx); err != nil {
				log.Printf("[di] WARN: audit schema init failed (attempt log disabled): %v", err)
			} else {
				c.Orchestrator.WithAttemptRecorder(attempts)
				log.Printf("✅ mint attempt audit log enabled")
			}
		}
	}

	// ------------------------------------------------------------
	// 6. Optional: オペレーター通知 (SendGrid)
	// ------------------------------------------------------------
	if cfg.SendGridAPIKey != "" && cfg.AlertMailFrom != "" && cfg.AlertMailTo != "" {
		mailer := mailout.NewSendGridClient(cfg.SendGridAPIKey)
		c.Orchestrator.WithOperatorNotifier(mailout.NewStuckLeaseNotifier(mailer, cfg.AlertMailFrom, cfg.AlertMailTo))
		log.Printf("✅ operator alert mail enabled (to: %s)", cfg.AlertMailTo)
	} else {
		log.Printf("[di] WARN: sendgrid not configured; stuck leases are logged only")
	}

	// ------------------------------------------------------------
	// 7. Optional: Firebase Auth
	// ------------------------------------------------------------
	if cfg.FirebaseProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID})
		if err != nil {
			log.Printf("[di] WARN: firebase app init failed (auth disabled): %v", err)
		} else if authClient, err := app.Auth(ctx); err != nil {
			log.Printf("[di] WARN: firebase auth init failed (auth disabled): %v", err)
		} else {
			c.FirebaseAuth = authClient
		}
	}

	return c, nil
}

// RouterDeps はルーターへ渡す依存を返します。
func (c *Container) RouterDeps() httpin.RouterDeps {
	return httpin.RouterDeps{
		Orchestrator: c.Orchestrator,
		Leases:       c.Leases,
		FirebaseAuth: c.FirebaseAuth,
	}
}

// Close は Cloud Run 終了時などに呼んで安全にリソースを閉じます。
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.firestore != nil {
		if err := c.firestore.Close(); err != nil {
			log.Printf("[di] firestore close error: %v", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			log.Printf("[di] db close error: %v", err)
		}
	}
	if c.gcs != nil {
		if err := c.gcs.Close(); err != nil {
			log.Printf("[di] gcs close error: %v", err)
		}
	}
}

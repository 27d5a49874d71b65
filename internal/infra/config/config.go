// internal/infra/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の環境変数設定を保持します。
// グローバルに持たず、DI コンテナ経由で明示的に渡します。
type Config struct {
	Port string

	// Firestore (whitelist record store)
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	WhitelistCollection      string

	// Solana
	SolanaRPCEndpoint     string
	MintAuthoritySecretID string
	GCPProjectID          string

	// Confirmation tuning
	ConfirmTimeout     time.Duration
	PollInterval       time.Duration
	StrictConfirmation bool

	// Balance gate (lamports)
	MinBalanceLamports uint64

	// Token metadata
	TokenMetadataBucket  string
	TokenMetadataBaseURI string
	TokenName            string
	TokenSymbol          string
	SellerFeeBasisPoints uint16

	// Firebase Auth（空なら mint エンドポイントは未認証で公開: 開発用）
	FirebaseProjectID string

	// Operator alert mail（SENDGRID_API_KEY が空なら無効）
	SendGridAPIKey string
	AlertMailFrom  string
	AlertMailTo    string

	// Mint attempt audit log（DATABASE_URL が空なら無効）
	DatabaseURL string

	// CORS
	AllowedOrigin string
}

// Load は環境変数を読み込み Config を返します。
func Load() *Config {
	defaultProject := getenvDefault("GCP_PROJECT_ID", "")

	cfg := &Config{
		Port: getenvDefault("PORT", "8080"),

		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: getenvTrim("FIRESTORE_CREDENTIALS_FILE"),
		WhitelistCollection:      getenvDefault("WHITELIST_COLLECTION", "whitelist"),

		SolanaRPCEndpoint:     getenvTrim("SOLANA_RPC_ENDPOINT"),
		MintAuthoritySecretID: getenvDefault("MINT_AUTHORITY_SECRET_ID", "candyhouse-mint-authority"),
		GCPProjectID:          defaultProject,

		ConfirmTimeout:     getenvDurationMS("CONFIRM_TIMEOUT_MS", 30_000),
		PollInterval:       getenvDurationMS("CONFIRM_POLL_INTERVAL_MS", 3_000),
		StrictConfirmation: getenvBool("STRICT_CONFIRMATION", true),

		MinBalanceLamports: getenvUint64("MIN_BALANCE_LAMPORTS", 12_000_000),

		TokenMetadataBucket:  getenvTrim("TOKEN_METADATA_BUCKET"),
		TokenMetadataBaseURI: getenvTrim("TOKEN_METADATA_BASE_URI"),
		TokenName:            getenvDefault("TOKEN_NAME", "Candyhouse"),
		TokenSymbol:          getenvDefault("TOKEN_SYMBOL", "CANDY"),
		SellerFeeBasisPoints: uint16(getenvUint64("SELLER_FEE_BASIS_POINTS", 500)),

		FirebaseProjectID: getenvDefault("FIREBASE_PROJECT_ID", defaultProject),

		SendGridAPIKey: getenvTrim("SENDGRID_API_KEY"),
		AlertMailFrom:  getenvTrim("ALERT_MAIL_FROM"),
		AlertMailTo:    getenvTrim("ALERT_MAIL_TO"),

		DatabaseURL: getenvTrim("DATABASE_URL"),

		AllowedOrigin: getenvDefault("ALLOWED_ORIGIN", "*"),
	}

	return cfg
}

func getenvTrim(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getenvDefault(key, def string) string {
	if v := getenvTrim(key); v != "" {
		return v
	}
	return def
}

func getenvUint64(key string, def uint64) uint64 {
	v := getenvTrim(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvDurationMS(key string, defMS uint64) time.Duration {
	return time.Duration(getenvUint64(key, defMS)) * time.Millisecond
}

func getenvBool(key string, def bool) bool {
	v := getenvTrim(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

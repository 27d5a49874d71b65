// internal/adapters/out/db/mintAttempt_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	usecase "candyhouse/internal/application/usecase"
)

// PostgreSQL implementation of usecase.AttemptRecorder.
//
// mint_attempts は追記専用の監査ログです。オーケストレーションの
// 正しさはこのテーブルに依存しません（記録失敗はログに出して続行）。
type MintAttemptRepositoryPG struct {
	db *sql.DB
}

// インターフェース実装チェック
var _ usecase.AttemptRecorder = (*MintAttemptRepositoryPG)(nil)

func NewMintAttemptRepositoryPG(db *sql.DB) *MintAttemptRepositoryPG {
	return &MintAttemptRepositoryPG{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (r *MintAttemptRepositoryPG) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("mint attempt repository: db is nil")
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS mint_attempts (
    id           BIGSERIAL PRIMARY KEY,
    address      TEXT        NOT NULL,
    tx_id        TEXT        NOT NULL DEFAULT '',
    metadata_key TEXT        NOT NULL DEFAULT '',
    outcome      TEXT        NOT NULL,
    reason       TEXT        NOT NULL DEFAULT '',
    raw_code     BIGINT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure mint_attempts schema: %w", err)
	}
	return nil
}

func (r *MintAttemptRepositoryPG) RecordAttempt(ctx context.Context, rec usecase.MintAttemptRecord) error {
	if r == nil || r.db == nil {
		return errors.New("mint attempt repository: db is nil")
	}

	addr := strings.TrimSpace(rec.Address)
	if addr == "" {
		return errors.New("mint attempt repository: address is empty")
	}

	var rawCode sql.NullInt64
	if rec.RawCode != nil {
		rawCode = sql.NullInt64{Int64: int64(*rec.RawCode), Valid: true}
	}

	const q = `
INSERT INTO mint_attempts (address, tx_id, metadata_key, outcome, reason, raw_code, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, q,
		addr,
		strings.TrimSpace(rec.TxID),
		strings.TrimSpace(rec.MetadataKey),
		rec.Outcome,
		rec.Reason,
		rawCode,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mint attempt: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/milijuli/sewa/internal/model"
)

// PostgresGenerationRepo はPostgreSQLを使用した生成ログリポジトリ。
type PostgresGenerationRepo struct {
	db *sql.DB
}

// NewPostgresGenerationRepo はPostgresGenerationRepoを生成する。
func NewPostgresGenerationRepo(db *sql.DB) *PostgresGenerationRepo {
	return &PostgresGenerationRepo{db: db}
}

// Create は生成ログを1件保存する。Outputが空の場合は空オブジェクトとして保存する。
func (r *PostgresGenerationRepo) Create(ctx context.Context, g *model.Generation) error {
	output := g.Output
	if output == "" {
		output = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO generations (id, kind, model, prompt, output, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`,
		g.ID, g.Kind, g.Model, g.Prompt, output, nullString(g.UserID), g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

// DeleteOlderThan はbeforeより前の生成ログを削除する。
func (r *PostgresGenerationRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM generations WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old generations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

var _ GenerationRepository = (*PostgresGenerationRepo)(nil)

// PostgresOutboxRepo はPostgreSQLを使用した送信メール記録リポジトリ。
type PostgresOutboxRepo struct {
	db *sql.DB
}

// NewPostgresOutboxRepo はPostgresOutboxRepoを生成する。
func NewPostgresOutboxRepo(db *sql.DB) *PostgresOutboxRepo {
	return &PostgresOutboxRepo{db: db}
}

// Create はメールを1件記録する。
func (r *PostgresOutboxRepo) Create(ctx context.Context, e *model.OutboxEmail) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_outbox (id, kind, recipient, subject, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Kind, e.Recipient, e.Subject, e.Body, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox email: %w", err)
	}
	return nil
}

// DeleteOlderThan はbeforeより前の記録を削除する。
func (r *PostgresOutboxRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM email_outbox WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old outbox emails: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

var _ OutboxRepository = (*PostgresOutboxRepo)(nil)

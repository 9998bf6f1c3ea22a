package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/milijuli/sewa/internal/model"
)

const projectUpdateColumns = `id, project_id, source_id, guid_or_id, title, link, content, summary,
	published_at, is_date_estimated, content_hash, created_at, updated_at`

// PostgresProjectUpdateRepo はPostgreSQLを使用した活動報告リポジトリ。
type PostgresProjectUpdateRepo struct {
	db *sql.DB
}

// NewPostgresProjectUpdateRepo はPostgresProjectUpdateRepoを生成する。
func NewPostgresProjectUpdateRepo(db *sql.DB) *PostgresProjectUpdateRepo {
	return &PostgresProjectUpdateRepo{db: db}
}

func scanProjectUpdate(row rowScanner) (*model.ProjectUpdate, error) {
	u := &model.ProjectUpdate{}
	var publishedAt sql.NullTime
	if err := row.Scan(
		&u.ID, &u.ProjectID, &u.SourceID, &u.GuidOrID, &u.Title, &u.Link, &u.Content, &u.Summary,
		&publishedAt, &u.IsDateEstimated, &u.ContentHash, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		u.PublishedAt = &publishedAt.Time
	}
	return u, nil
}

func (r *PostgresProjectUpdateRepo) findOne(ctx context.Context, where string, args ...any) (*model.ProjectUpdate, error) {
	u, err := scanProjectUpdate(r.db.QueryRowContext(ctx,
		`SELECT `+projectUpdateColumns+` FROM project_updates WHERE `+where+` LIMIT 1`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("活動報告の取得に失敗しました: %w", err)
	}
	return u, nil
}

// FindBySourceAndGUID はsource_idとguid_or_idで検索する。
func (r *PostgresProjectUpdateRepo) FindBySourceAndGUID(ctx context.Context, sourceID, guid string) (*model.ProjectUpdate, error) {
	return r.findOne(ctx, `source_id = $1 AND guid_or_id = $2`, sourceID, guid)
}

// FindBySourceAndLink はsource_idとlinkで検索する。
func (r *PostgresProjectUpdateRepo) FindBySourceAndLink(ctx context.Context, sourceID, link string) (*model.ProjectUpdate, error) {
	return r.findOne(ctx, `source_id = $1 AND link = $2`, sourceID, link)
}

// FindByContentHash はsource_idとcontent_hashで検索する。
func (r *PostgresProjectUpdateRepo) FindByContentHash(ctx context.Context, sourceID, contentHash string) (*model.ProjectUpdate, error) {
	return r.findOne(ctx, `source_id = $1 AND content_hash = $2`, sourceID, contentHash)
}

// ListByProject はプロジェクトの活動報告を公開日の新しい順に返す。
func (r *PostgresProjectUpdateRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]*model.ProjectUpdate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectUpdateColumns+`
		 FROM project_updates
		 WHERE project_id = $1
		 ORDER BY published_at DESC NULLS LAST, created_at DESC
		 LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("活動報告一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	updates := make([]*model.ProjectUpdate, 0)
	for rows.Next() {
		u, err := scanProjectUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("活動報告の読み取りに失敗しました: %w", err)
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("活動報告の走査に失敗しました: %w", err)
	}
	return updates, nil
}

// Create は新規の活動報告を作成する。
func (r *PostgresProjectUpdateRepo) Create(ctx context.Context, u *model.ProjectUpdate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_updates (`+projectUpdateColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.ProjectID, u.SourceID, u.GuidOrID, u.Title, u.Link, u.Content, u.Summary,
		u.PublishedAt, u.IsDateEstimated, u.ContentHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("活動報告の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存の活動報告を上書き更新する。履歴は保持しない。
func (r *PostgresProjectUpdateRepo) Update(ctx context.Context, u *model.ProjectUpdate) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE project_updates SET
		    guid_or_id = $2, title = $3, link = $4, content = $5, summary = $6,
		    published_at = $7, is_date_estimated = $8, content_hash = $9, updated_at = $10
		 WHERE id = $1`,
		u.ID, u.GuidOrID, u.Title, u.Link, u.Content, u.Summary,
		u.PublishedAt, u.IsDateEstimated, u.ContentHash, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("活動報告の更新に失敗しました: %w", err)
	}
	return nil
}

var _ ProjectUpdateRepository = (*PostgresProjectUpdateRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/milijuli/sewa/internal/model"
)

const updateSourceColumns = `id, project_id, site_url, feed_url, fetch_status, consecutive_errors, last_error,
	etag, last_modified, last_fetched_at, next_fetch_at, created_at, updated_at`

// PostgresUpdateSourceRepo はPostgreSQLを使用した活動報告フィード取得元リポジトリ。
type PostgresUpdateSourceRepo struct {
	db *sql.DB
}

// NewPostgresUpdateSourceRepo はPostgresUpdateSourceRepoを生成する。
func NewPostgresUpdateSourceRepo(db *sql.DB) *PostgresUpdateSourceRepo {
	return &PostgresUpdateSourceRepo{db: db}
}

func scanUpdateSource(row rowScanner) (*model.UpdateSource, error) {
	s := &model.UpdateSource{}
	var lastFetchedAt sql.NullTime
	if err := row.Scan(
		&s.ID, &s.ProjectID, &s.SiteURL, &s.FeedURL, &s.FetchStatus, &s.ConsecutiveErrors, &s.LastError,
		&s.ETag, &s.LastModified, &lastFetchedAt, &s.NextFetchAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastFetchedAt.Valid {
		s.LastFetchedAt = &lastFetchedAt.Time
	}
	return s, nil
}

// FindByID は指定IDの取得元を返す。見つからない場合はnilを返す。
func (r *PostgresUpdateSourceRepo) FindByID(ctx context.Context, id string) (*model.UpdateSource, error) {
	s, err := scanUpdateSource(r.db.QueryRowContext(ctx,
		`SELECT `+updateSourceColumns+` FROM update_sources WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("取得元の取得に失敗しました: %w", err)
	}
	return s, nil
}

// FindByProjectAndFeedURL はプロジェクトとフィードURLで取得元を検索する。
func (r *PostgresUpdateSourceRepo) FindByProjectAndFeedURL(ctx context.Context, projectID, feedURL string) (*model.UpdateSource, error) {
	s, err := scanUpdateSource(r.db.QueryRowContext(ctx,
		`SELECT `+updateSourceColumns+` FROM update_sources WHERE project_id = $1 AND feed_url = $2`,
		projectID, feedURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードURLによる取得元の検索に失敗しました: %w", err)
	}
	return s, nil
}

// Create は取得元を作成する。
func (r *PostgresUpdateSourceRepo) Create(ctx context.Context, s *model.UpdateSource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO update_sources (id, project_id, site_url, feed_url, fetch_status, consecutive_errors,
		                             last_error, etag, last_modified, next_fetch_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.ProjectID, s.SiteURL, s.FeedURL, s.FetchStatus, s.ConsecutiveErrors,
		s.LastError, s.ETag, s.LastModified, s.NextFetchAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("取得元の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByProject はプロジェクトの取得元一覧を返す。
func (r *PostgresUpdateSourceRepo) ListByProject(ctx context.Context, projectID string) ([]*model.UpdateSource, error) {
	return r.list(ctx,
		`SELECT `+updateSourceColumns+` FROM update_sources WHERE project_id = $1 ORDER BY created_at ASC`,
		projectID)
}

// ListDueForFetch はフェッチ対象の取得元を排他的に取得する。
func (r *PostgresUpdateSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.UpdateSource, error) {
	return r.list(ctx,
		`SELECT `+updateSourceColumns+`
		 FROM update_sources
		 WHERE next_fetch_at <= now()
		   AND fetch_status = 'active'
		 ORDER BY next_fetch_at ASC
		 FOR UPDATE SKIP LOCKED`)
}

func (r *PostgresUpdateSourceRepo) list(ctx context.Context, query string, args ...any) ([]*model.UpdateSource, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("取得元一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	sources := make([]*model.UpdateSource, 0)
	for rows.Next() {
		s, err := scanUpdateSource(rows)
		if err != nil {
			return nil, fmt.Errorf("取得元の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("取得元の走査に失敗しました: %w", err)
	}
	return sources, nil
}

// UpdateFetchState はフェッチ状態を更新する。
func (r *PostgresUpdateSourceRepo) UpdateFetchState(ctx context.Context, s *model.UpdateSource) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE update_sources SET
		    fetch_status = $2,
		    consecutive_errors = $3,
		    last_error = $4,
		    next_fetch_at = $5,
		    etag = $6,
		    last_modified = $7,
		    last_fetched_at = $8,
		    updated_at = now()
		 WHERE id = $1`,
		s.ID, s.FetchStatus, s.ConsecutiveErrors, s.LastError, s.NextFetchAt,
		s.ETag, s.LastModified, s.LastFetchedAt,
	)
	if err != nil {
		return fmt.Errorf("フェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}

var _ UpdateSourceRepository = (*PostgresUpdateSourceRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/milijuli/sewa/internal/model"
)

const projectColumns = `id, title, slug, summary, description, category, location, image_url,
	target_amount, raised_amount, donor_count, status, featured, created_at, updated_at`

// maxProjectListLimit は1回の一覧取得で返す上限件数。
const maxProjectListLimit = 100

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*model.Project, error) {
	p := &model.Project{}
	var imageURL sql.NullString
	if err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Summary, &p.Description, &p.Category, &p.Location, &imageURL,
		&p.TargetAmount, &p.RaisedAmount, &p.DonorCount, &p.Status, &p.Featured, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.ImageURL = nullStringValue(imageURL)
	return p, nil
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}
	return p, nil
}

// FindBySlug はスラッグでプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindBySlug(ctx context.Context, slug string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by slug: %w", err)
	}
	return p, nil
}

// List はフィルタ条件に一致するプロジェクトを返す。
func (r *PostgresProjectRepo) List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, error) {
	query, args := buildProjectListQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// buildProjectListQuery はフィルタからSELECT文と引数を組み立てる。
func buildProjectListQuery(filter model.ProjectFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Featured != nil {
		add("featured = $%d", *filter.Featured)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR summary ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(projectColumns)
	b.WriteString(" FROM projects")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	switch filter.Order {
	case model.ProjectOrderMostFunded:
		b.WriteString(" ORDER BY raised_amount DESC, created_at DESC")
	case model.ProjectOrderEndingSoon:
		// 受付中を先に並べ、達成率は100%で頭打ちにする。
		b.WriteString(" ORDER BY CASE WHEN status = 'active' THEN 0 ELSE 1 END," +
			" CASE WHEN target_amount > 0 THEN LEAST(raised_amount::float8 / target_amount, 1) ELSE 0 END DESC," +
			" created_at DESC")
	case model.ProjectOrderTitle:
		b.WriteString(" ORDER BY title ASC")
	default:
		b.WriteString(" ORDER BY created_at DESC")
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxProjectListLimit {
		limit = maxProjectListLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	return b.String(), args
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Create はプロジェクトを作成する。スラッグが既存の場合は何もせずfalseを返す。
func (r *PostgresProjectRepo) Create(ctx context.Context, p *model.Project) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, title, slug, summary, description, category, location, image_url,
		                       target_amount, raised_amount, donor_count, status, featured, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (slug) DO NOTHING`,
		p.ID, p.Title, p.Slug, p.Summary, p.Description, p.Category, p.Location, nullString(p.ImageURL),
		p.TargetAmount, p.RaisedAmount, p.DonorCount, p.Status, p.Featured, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Stats はプロジェクト・寄付の件数と合計額を1クエリで集計する。
func (r *PostgresProjectRepo) Stats(ctx context.Context) (*model.PlatformStats, error) {
	s := &model.PlatformStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    (SELECT count(*) FROM projects),
		    (SELECT count(*) FROM projects WHERE status = 'active'),
		    (SELECT count(*) FROM donations),
		    (SELECT count(DISTINCT COALESCE(user_id::text, NULLIF(donor_email, ''), id::text)) FROM donations),
		    (SELECT COALESCE(sum(amount), 0) FROM donations),
		    (SELECT count(*) FROM physical_donations WHERE status <> 'cancelled')`,
	).Scan(&s.ProjectCount, &s.ActiveProjectCount, &s.DonationCount, &s.DonorCount, &s.TotalRaised, &s.InKindCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	return s, nil
}

var _ ProjectRepository = (*PostgresProjectRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/milijuli/sewa/internal/model"
)

const donationColumns = `id, project_id, user_id, donor_name, donor_email, amount, message, anonymous, country, created_at`

// PostgresDonationRepo はPostgreSQLを使用した金銭寄付リポジトリ。
type PostgresDonationRepo struct {
	db *sql.DB
}

// NewPostgresDonationRepo はPostgresDonationRepoを生成する。
func NewPostgresDonationRepo(db *sql.DB) *PostgresDonationRepo {
	return &PostgresDonationRepo{db: db}
}

func scanDonation(row rowScanner, extra ...any) (*model.Donation, error) {
	d := &model.Donation{}
	var userID sql.NullString
	dest := []any{
		&d.ID, &d.ProjectID, &userID, &d.DonorName, &d.DonorEmail, &d.Amount,
		&d.Message, &d.Anonymous, &d.Country, &d.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	d.UserID = nullStringValue(userID)
	return d, nil
}

// CreateAndApply は寄付を記録し、プロジェクトの集計値を同一トランザクションで更新する。
// 同じ寄付者（ユーザーIDまたはメールアドレス）の2回目以降はdonor_countを増やさない。
// raised_amountが目標額に達した時点でactiveのプロジェクトはfundedへ遷移する。
func (r *PostgresDonationRepo) CreateAndApply(ctx context.Context, d *model.Donation) (*model.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, d.ProjectID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock project: %w", err)
	}

	var returning bool
	if d.UserID != "" || d.DonorEmail != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (
			    SELECT 1 FROM donations
			    WHERE project_id = $1
			      AND (($2::uuid IS NOT NULL AND user_id = $2::uuid) OR ($3 <> '' AND donor_email = $3))
			)`,
			d.ProjectID, nullString(d.UserID), d.DonorEmail,
		).Scan(&returning)
		if err != nil {
			return nil, fmt.Errorf("failed to check previous donations: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO donations (`+donationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.ProjectID, nullString(d.UserID), d.DonorName, d.DonorEmail, d.Amount,
		d.Message, d.Anonymous, d.Country, d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert donation: %w", err)
	}

	newDonors := 1
	if returning {
		newDonors = 0
	}
	project, err := scanProject(tx.QueryRowContext(ctx,
		`UPDATE projects SET
		    raised_amount = raised_amount + $2,
		    donor_count = donor_count + $3,
		    status = CASE
		        WHEN status = 'active' AND target_amount > 0 AND raised_amount + $2 >= target_amount THEN 'funded'
		        ELSE status
		    END,
		    updated_at = now()
		 WHERE id = $1
		 RETURNING `+projectColumns,
		d.ProjectID, d.Amount, newDonors,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to apply donation to project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return project, nil
}

// ListByProject はプロジェクトの寄付を新しい順に返す。
func (r *PostgresDonationRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]*model.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE project_id = $1 ORDER BY created_at DESC`
	args := []any{projectID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryDonations(ctx, query, args...)
}

// ListRecent は全プロジェクト横断で新しい順に寄付を返す。
func (r *PostgresDonationRepo) ListRecent(ctx context.Context, limit int) ([]*model.Donation, error) {
	return r.queryDonations(ctx,
		`SELECT `+donationColumns+` FROM donations ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *PostgresDonationRepo) queryDonations(ctx context.Context, query string, args ...any) ([]*model.Donation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	donations := make([]*model.Donation, 0)
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate donations: %w", err)
	}
	return donations, nil
}

// ListByUser はユーザーの寄付をプロジェクト名付きで新しい順に返す。
func (r *PostgresDonationRepo) ListByUser(ctx context.Context, userID string) ([]*model.DonationWithProject, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.id, d.project_id, d.user_id, d.donor_name, d.donor_email, d.amount,
		        d.message, d.anonymous, d.country, d.created_at, p.title
		 FROM donations d
		 INNER JOIN projects p ON p.id = d.project_id
		 WHERE d.user_id = $1
		 ORDER BY d.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user donations: %w", err)
	}
	defer rows.Close()

	donations := make([]*model.DonationWithProject, 0)
	for rows.Next() {
		var title string
		d, err := scanDonation(rows, &title)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user donation: %w", err)
		}
		donations = append(donations, &model.DonationWithProject{Donation: *d, ProjectTitle: title})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user donations: %w", err)
	}
	return donations, nil
}

var _ DonationRepository = (*PostgresDonationRepo)(nil)

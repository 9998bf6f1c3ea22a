package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/milijuli/sewa/internal/model"
)

const physicalDonationColumns = `id, project_id, user_id, donor_name, donor_email, item_name, quantity,
	unit, condition, status, notes, created_at, updated_at`

// PostgresPhysicalDonationRepo はPostgreSQLを使用した物品寄付リポジトリ。
type PostgresPhysicalDonationRepo struct {
	db *sql.DB
}

// NewPostgresPhysicalDonationRepo はPostgresPhysicalDonationRepoを生成する。
func NewPostgresPhysicalDonationRepo(db *sql.DB) *PostgresPhysicalDonationRepo {
	return &PostgresPhysicalDonationRepo{db: db}
}

func scanPhysicalDonation(row rowScanner) (*model.PhysicalDonation, error) {
	d := &model.PhysicalDonation{}
	var userID sql.NullString
	if err := row.Scan(
		&d.ID, &d.ProjectID, &userID, &d.DonorName, &d.DonorEmail, &d.ItemName, &d.Quantity,
		&d.Unit, &d.Condition, &d.Status, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.UserID = nullStringValue(userID)
	return d, nil
}

// Create は物品寄付を作成する。
func (r *PostgresPhysicalDonationRepo) Create(ctx context.Context, d *model.PhysicalDonation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO physical_donations (`+physicalDonationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.ProjectID, nullString(d.UserID), d.DonorName, d.DonorEmail, d.ItemName, d.Quantity,
		d.Unit, d.Condition, d.Status, d.Notes, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create physical donation: %w", err)
	}
	return nil
}

// FindByID は指定IDの物品寄付を取得する。見つからない場合はnilを返す。
func (r *PostgresPhysicalDonationRepo) FindByID(ctx context.Context, id string) (*model.PhysicalDonation, error) {
	d, err := scanPhysicalDonation(r.db.QueryRowContext(ctx,
		`SELECT `+physicalDonationColumns+` FROM physical_donations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find physical donation: %w", err)
	}
	return d, nil
}

// ListByProject はプロジェクトの物品寄付を新しい順に返す。
func (r *PostgresPhysicalDonationRepo) ListByProject(ctx context.Context, projectID string) ([]*model.PhysicalDonation, error) {
	return r.list(ctx,
		`SELECT `+physicalDonationColumns+` FROM physical_donations WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID)
}

// ListByUser はユーザーの物品寄付を新しい順に返す。
func (r *PostgresPhysicalDonationRepo) ListByUser(ctx context.Context, userID string) ([]*model.PhysicalDonation, error) {
	return r.list(ctx,
		`SELECT `+physicalDonationColumns+` FROM physical_donations WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (r *PostgresPhysicalDonationRepo) list(ctx context.Context, query string, arg string) ([]*model.PhysicalDonation, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list physical donations: %w", err)
	}
	defer rows.Close()

	result := make([]*model.PhysicalDonation, 0)
	for rows.Next() {
		d, err := scanPhysicalDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan physical donation: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate physical donations: %w", err)
	}
	return result, nil
}

// UpdateStatus は現在の状態がfromの場合のみtoへ更新する（楽観的な状態遷移）。
func (r *PostgresPhysicalDonationRepo) UpdateStatus(ctx context.Context, id string, from, to model.PhysicalDonationStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE physical_donations SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update physical donation status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

var _ PhysicalDonationRepository = (*PostgresPhysicalDonationRepo)(nil)

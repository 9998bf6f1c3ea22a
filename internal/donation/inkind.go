package donation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/model"
)

// PledgeInput は物品寄付の申し出の入力。
type PledgeInput struct {
	ProjectID  string `json:"-" validate:"required"`
	UserID     string `json:"-"`
	DonorName  string `json:"donor_name" validate:"required,max=100"`
	DonorEmail string `json:"donor_email" validate:"omitempty,email,max=254"`
	ItemName   string `json:"item_name" validate:"required,max=200"`
	Quantity   int    `json:"quantity" validate:"gt=0,lte=100000"`
	Unit       string `json:"unit" validate:"max=30"`
	Condition  string `json:"condition" validate:"omitempty,oneof=new good used"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// Pledge は物品寄付の申し出を記録し、受付メールをバックグラウンドで生成する。
func (s *Service) Pledge(ctx context.Context, in PledgeInput) (*model.PhysicalDonation, error) {
	in.DonorName = strings.TrimSpace(in.DonorName)
	in.DonorEmail = strings.TrimSpace(in.DonorEmail)
	in.ItemName = strings.TrimSpace(in.ItemName)
	if err := s.validate.Struct(in); err != nil {
		return nil, model.NewValidationError(describeValidation(err))
	}

	project, err := s.projects.FindByID(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(in.ProjectID)
	}
	if !project.Status.AcceptsDonations() {
		return nil, model.NewProjectClosedError()
	}

	condition := in.Condition
	if condition == "" {
		condition = "new"
	}

	now := time.Now()
	d := &model.PhysicalDonation{
		ID:         uuid.New().String(),
		ProjectID:  in.ProjectID,
		UserID:     in.UserID,
		DonorName:  in.DonorName,
		DonorEmail: in.DonorEmail,
		ItemName:   in.ItemName,
		Quantity:   in.Quantity,
		Unit:       strings.TrimSpace(in.Unit),
		Condition:  condition,
		Status:     model.PhysicalStatusPledged,
		Notes:      strings.TrimSpace(in.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.inKind.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("物品寄付の記録に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "物品寄付の申し出を受け付けました",
		slog.String("in_kind_id", d.ID),
		slog.String("project_id", d.ProjectID),
		slog.String("item", d.ItemName),
		slog.Int("quantity", d.Quantity),
	)
	if s.observer != nil {
		s.observer.ObserveInKindPledge()
	}

	if s.ack != nil && d.DonorEmail != "" {
		ackIn := assistant.InKindAckInput{
			DonorName:    d.DonorName,
			DonorEmail:   d.DonorEmail,
			ItemName:     d.ItemName,
			Quantity:     d.Quantity,
			Unit:         d.Unit,
			ProjectTitle: project.Title,
		}
		s.background(ctx, "in_kind_ack", d.ID, func(ctx context.Context) error {
			_, err := s.ack.InKindAcknowledgement(ctx, d.UserID, ackIn)
			return err
		})
	}
	return d, nil
}

// UpdateInKindStatus は物品寄付の状態を遷移させる。
// 許可される遷移: pledged→received, pledged→cancelled, received→distributed
// 同時更新で状態が変わっていた場合も不正な遷移として扱う。
func (s *Service) UpdateInKindStatus(ctx context.Context, id string, to model.PhysicalDonationStatus) (*model.PhysicalDonation, error) {
	if !to.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("unknown status %q", to))
	}

	d, err := s.inKind.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("物品寄付の取得に失敗しました: %w", err)
	}
	if d == nil {
		return nil, model.NewInKindNotFoundError(id)
	}
	if !d.Status.CanTransitionTo(to) {
		return nil, model.NewInvalidStatusTransitionError(d.Status, to)
	}

	ok, err := s.inKind.UpdateStatus(ctx, id, d.Status, to)
	if err != nil {
		return nil, fmt.Errorf("物品寄付の状態更新に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewInvalidStatusTransitionError(d.Status, to)
	}

	slog.InfoContext(ctx, "物品寄付の状態を更新しました",
		slog.String("in_kind_id", id),
		slog.String("from", string(d.Status)),
		slog.String("to", string(to)),
	)
	d.Status = to
	d.UpdatedAt = time.Now()
	return d, nil
}

// ListInKindByProject はプロジェクトの物品寄付を返す。取得失敗時は空のスライスを返す。
func (s *Service) ListInKindByProject(ctx context.Context, projectID string) []*model.PhysicalDonation {
	items, err := s.inKind.ListByProject(ctx, projectID)
	if err != nil {
		slog.ErrorContext(ctx, "物品寄付一覧の取得に失敗しました",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		return []*model.PhysicalDonation{}
	}
	return nonNil(items)
}

// ListInKindByUser はユーザーの物品寄付を返す。取得失敗時は空のスライスを返す。
func (s *Service) ListInKindByUser(ctx context.Context, userID string) []*model.PhysicalDonation {
	items, err := s.inKind.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "ユーザーの物品寄付一覧の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return []*model.PhysicalDonation{}
	}
	return nonNil(items)
}

// Package user は寄付者プロフィールと退会処理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
)

// maxImpactGifts はインパクトサマリーに渡す寄付の最大件数（新しい順）。
const maxImpactGifts = 100

// GivingHistory はユーザーの寄付履歴の読み取りインターフェース。
// 取得失敗時は空のスライスを返す実装を想定する。
type GivingHistory interface {
	ListByUser(ctx context.Context, userID string) []*model.DonationWithProject
	ListInKindByUser(ctx context.Context, userID string) []*model.PhysicalDonation
}

// ImpactWriter は寄付者インパクトサマリーの生成インターフェース。
type ImpactWriter interface {
	DonorImpactSummary(ctx context.Context, userID string, in assistant.DonorImpactInput) (*assistant.DonorImpactSummary, error)
}

// Profile は寄付者プロフィール。
type Profile struct {
	User              *model.User
	Donations         []*model.DonationWithProject
	InKind            []*model.PhysicalDonation
	TotalGiven        int64
	GiftCount         int
	ProjectsSupported int
}

// Service はユーザー管理のサービス層。
// プロフィール表示と退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	history     GivingHistory
	impact      ImpactWriter
}

// NewService はServiceの新しいインスタンスを生成する。impactがnilの場合はサマリー生成を無効にする。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	history GivingHistory,
	impact ImpactWriter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		history:     history,
		impact:      impact,
	}
}

// Profile はユーザー情報と寄付履歴、集計値を返す。
// 履歴の取得に失敗した場合は空の履歴として扱う。
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	p := &Profile{
		User:      user,
		Donations: []*model.DonationWithProject{},
		InKind:    []*model.PhysicalDonation{},
	}
	if s.history != nil {
		p.Donations = s.history.ListByUser(ctx, userID)
		p.InKind = s.history.ListInKindByUser(ctx, userID)
	}

	projects := make(map[string]struct{})
	for _, d := range p.Donations {
		p.TotalGiven += d.Amount
		p.GiftCount++
		projects[d.ProjectID] = struct{}{}
	}
	for _, d := range p.InKind {
		if d.Status != model.PhysicalStatusCancelled {
			projects[d.ProjectID] = struct{}{}
		}
	}
	p.ProjectsSupported = len(projects)
	return p, nil
}

// ImpactSummary は寄付履歴から寄付者向けのインパクトサマリーを生成する。
// 寄付が1件もない場合は入力検証エラーを返す。
func (s *Service) ImpactSummary(ctx context.Context, userID string) (*assistant.DonorImpactSummary, error) {
	if s.impact == nil {
		return nil, model.NewGenerationDisabledError()
	}
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	gifts := make([]assistant.ImpactGift, 0, len(p.Donations))
	for _, d := range p.Donations {
		if d.ProjectTitle == "" || d.Amount <= 0 {
			continue
		}
		gifts = append(gifts, assistant.ImpactGift{ProjectTitle: d.ProjectTitle, Amount: d.Amount})
		if len(gifts) == maxImpactGifts {
			break
		}
	}
	if len(gifts) == 0 {
		return nil, model.NewValidationError("no donations to summarize yet")
	}

	name := p.User.Name
	if name == "" {
		name = "Friend"
	}
	return s.impact.DonorImpactSummary(ctx, userID, assistant.DonorImpactInput{
		DonorName: name,
		Gifts:     gifts,
	})
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: identities）
// 寄付・物品寄付はプロジェクトの実績として残し、user_idのみNULLになる。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.InfoContext(ctx, "退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 2. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

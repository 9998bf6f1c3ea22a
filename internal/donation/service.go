// Package donation は金銭寄付と物品寄付（in-kind）のドメインロジックを提供する。
//
// 寄付の記録とプロジェクト集計値の更新は1トランザクションで行う。
// お礼メール等の生成は寄付の成否に影響させず、バックグラウンドでベストエフォートに実行する。
// 読み取り系の操作は取得失敗時にログを出力し、空のスライスを返す。
package donation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
	"github.com/milijuli/sewa/internal/view"
)

// acknowledgeTimeout はお礼メール生成の待ち時間上限。
const acknowledgeTimeout = 45 * time.Second

// CountryResolver はIPアドレスから国コードを判定する。判定できない場合は空文字を返す。
type CountryResolver interface {
	Country(ip string) string
}

// Acknowledger はお礼メール・受付メールを生成して送信する。
type Acknowledger interface {
	ThankYouEmail(ctx context.Context, userID string, in assistant.ThankYouEmailInput) (*assistant.Email, error)
	InKindAcknowledgement(ctx context.Context, userID string, in assistant.InKindAckInput) (*assistant.Email, error)
}

// Observer は寄付の計測フック。
type Observer interface {
	ObserveDonation(amount int64)
	ObserveInKindPledge()
}

// DonateInput は金銭寄付の入力。UserIDとRemoteIPはリクエストから設定する。
type DonateInput struct {
	ProjectID  string `json:"-" validate:"required"`
	UserID     string `json:"-"`
	RemoteIP   string `json:"-"`
	DonorName  string `json:"donor_name" validate:"required_without=Anonymous,max=100"`
	DonorEmail string `json:"donor_email" validate:"omitempty,email,max=254"`
	Amount     int64  `json:"amount" validate:"gt=0,lte=10000000"`
	Message    string `json:"message" validate:"max=500"`
	Anonymous  bool   `json:"anonymous"`
}

// Receipt は寄付完了時の結果。Projectは寄付反映後の値。
type Receipt struct {
	Donation *model.Donation
	Project  *model.Project
}

// Service は寄付のサービス層。
type Service struct {
	projects  repository.ProjectRepository
	donations repository.DonationRepository
	inKind    repository.PhysicalDonationRepository
	countries CountryResolver
	ack       Acknowledger
	observer  Observer
	validate  *validator.Validate

	// wg はバックグラウンドのお礼メール生成を追跡する。
	wg sync.WaitGroup
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithCountryResolver は寄付元の国判定を有効にする。
func WithCountryResolver(r CountryResolver) Option {
	return func(s *Service) { s.countries = r }
}

// WithAcknowledger は寄付後のお礼メール生成を有効にする。
func WithAcknowledger(a Acknowledger) Option {
	return func(s *Service) { s.ack = a }
}

// WithObserver は計測フックを設定する。
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	projects repository.ProjectRepository,
	donations repository.DonationRepository,
	inKind repository.PhysicalDonationRepository,
	opts ...Option,
) *Service {
	s := &Service{
		projects:  projects,
		donations: donations,
		inKind:    inKind,
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait はバックグラウンドで実行中のお礼メール生成の完了を待つ。シャットダウン時とテストで使う。
func (s *Service) Wait() {
	s.wg.Wait()
}

// Donate は金銭寄付を記録する。
// フロー: 入力検証 → プロジェクトの受付確認 → 国判定 → 記録と集計更新（1トランザクション）→ お礼メール（非同期）
func (s *Service) Donate(ctx context.Context, in DonateInput) (*Receipt, error) {
	in.DonorName = strings.TrimSpace(in.DonorName)
	in.DonorEmail = strings.TrimSpace(in.DonorEmail)
	in.Message = strings.TrimSpace(in.Message)
	if err := s.validate.Struct(in); err != nil {
		return nil, model.NewValidationError(describeValidation(err))
	}

	if err := s.ensureAcceptsDonations(ctx, in.ProjectID); err != nil {
		return nil, err
	}

	d := &model.Donation{
		ID:         uuid.New().String(),
		ProjectID:  in.ProjectID,
		UserID:     in.UserID,
		DonorName:  in.DonorName,
		DonorEmail: in.DonorEmail,
		Amount:     in.Amount,
		Message:    in.Message,
		Anonymous:  in.Anonymous,
		CreatedAt:  time.Now(),
	}
	if s.countries != nil && in.RemoteIP != "" {
		d.Country = s.countries.Country(in.RemoteIP)
	}

	project, err := s.donations.CreateAndApply(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("寄付の記録に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(in.ProjectID)
	}

	slog.InfoContext(ctx, "寄付を受け付けました",
		slog.String("donation_id", d.ID),
		slog.String("project_id", d.ProjectID),
		slog.Int64("amount", d.Amount),
		slog.String("project_status", string(project.Status)),
	)
	if s.observer != nil {
		s.observer.ObserveDonation(d.Amount)
	}

	s.thankDonor(ctx, d, project)
	return &Receipt{Donation: d, Project: project}, nil
}

func (s *Service) ensureAcceptsDonations(ctx context.Context, projectID string) error {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return model.NewProjectNotFoundError(projectID)
	}
	if !project.Status.AcceptsDonations() {
		return model.NewProjectClosedError()
	}
	return nil
}

// thankDonor はお礼メールをバックグラウンドで生成する。メールアドレスのない寄付は対象外。
func (s *Service) thankDonor(ctx context.Context, d *model.Donation, project *model.Project) {
	if s.ack == nil || d.DonorEmail == "" {
		return
	}
	name := d.DonorName
	if name == "" {
		name = "Friend"
	}
	in := assistant.ThankYouEmailInput{
		DonorName:    name,
		DonorEmail:   d.DonorEmail,
		ProjectTitle: project.Title,
		Amount:       d.Amount,
		Message:      d.Message,
	}
	s.background(ctx, "thank_you_email", d.ID, func(ctx context.Context) error {
		_, err := s.ack.ThankYouEmail(ctx, d.UserID, in)
		return err
	})
}

// background はリクエストのキャンセルから切り離したコンテキストでfnを実行する。失敗はログのみ。
func (s *Service) background(ctx context.Context, kind, refID string, fn func(context.Context) error) {
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), acknowledgeTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := fn(bgCtx); err != nil {
			slog.WarnContext(bgCtx, "寄付者へのメール生成に失敗しました",
				slog.String("kind", kind),
				slog.String("ref_id", refID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// ListByProject はプロジェクトの寄付を新しい順に返す。limit<=0は全件。
func (s *Service) ListByProject(ctx context.Context, projectID string, limit int) []*model.Donation {
	donations, err := s.donations.ListByProject(ctx, projectID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "寄付一覧の取得に失敗しました",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		return []*model.Donation{}
	}
	return nonNil(donations)
}

// ListByUser はユーザーの寄付をプロジェクト名付きで返す。
func (s *Service) ListByUser(ctx context.Context, userID string) []*model.DonationWithProject {
	donations, err := s.donations.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "ユーザーの寄付一覧の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return []*model.DonationWithProject{}
	}
	return nonNil(donations)
}

// RecentDonations は全プロジェクト横断の直近の寄付を返す。
func (s *Service) RecentDonations(ctx context.Context, limit int) []*model.Donation {
	donations, err := s.donations.ListRecent(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "直近の寄付の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return []*model.Donation{}
	}
	return nonNil(donations)
}

// TopDonors はプロジェクト内の寄付者ランキングを返す。
// サイト全体のランキングはダッシュボードが直近の寄付から集計する。
func (s *Service) TopDonors(ctx context.Context, projectID string, limit int) []model.DonorTotal {
	return view.TopDonors(s.ListByProject(ctx, projectID, 0), limit)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// describeValidation は検証エラーを "field: tag" の形で要約する。
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

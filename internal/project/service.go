// Package project はプロジェクト（募金キャンペーン）カタログのドメインロジックを提供する。
// 読み取り系の操作は取得失敗時にログを出力し、空の結果を返す。
package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
)

const (
	// DefaultListLimit は一覧取得の既定件数。
	DefaultListLimit = 20
	// MaxListLimit は一覧取得の最大件数。
	MaxListLimit = 100
)

// HTMLSanitizer はプロジェクト説明文のサニタイズを行う。
type HTMLSanitizer interface {
	Description(raw string) string
	PlainText(raw string) string
}

// CreateInput はプロジェクト作成の入力。seedコマンドのYAMLとしても使う。
type CreateInput struct {
	Title        string `yaml:"title" validate:"required,max=200"`
	Slug         string `yaml:"slug" validate:"omitempty,max=120"`
	Summary      string `yaml:"summary" validate:"required,max=500"`
	Description  string `yaml:"description"`
	Category     string `yaml:"category" validate:"required,max=50"`
	Location     string `yaml:"location" validate:"max=100"`
	ImageURL     string `yaml:"image_url" validate:"omitempty,url"`
	TargetAmount int64  `yaml:"target_amount" validate:"gt=0"`
	Featured     bool   `yaml:"featured"`
}

// Service はプロジェクトカタログのサービス層。
type Service struct {
	repo      repository.ProjectRepository
	sanitizer HTMLSanitizer
	validate  *validator.Validate
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ProjectRepository, sanitizer HTMLSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		validate:  validator.New(),
	}
}

// NormalizeFilter は未知の並び順・状態を既定値に寄せ、件数を範囲内に収める。
func NormalizeFilter(f model.ProjectFilter) model.ProjectFilter {
	switch f.Order {
	case model.ProjectOrderNewest, model.ProjectOrderMostFunded, model.ProjectOrderEndingSoon, model.ProjectOrderTitle:
	default:
		f.Order = model.ProjectOrderNewest
	}
	switch f.Status {
	case "", model.ProjectStatusActive, model.ProjectStatusFunded, model.ProjectStatusClosed:
	default:
		f.Status = ""
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// List はフィルタ条件に一致するプロジェクトを返す。取得失敗時は空のスライスを返す。
func (s *Service) List(ctx context.Context, filter model.ProjectFilter) []*model.Project {
	filter = NormalizeFilter(filter)
	projects, err := s.repo.List(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, "プロジェクト一覧の取得に失敗しました",
			slog.String("category", filter.Category),
			slog.String("order", string(filter.Order)),
			slog.String("error", err.Error()),
		)
		return []*model.Project{}
	}
	if projects == nil {
		return []*model.Project{}
	}
	return projects
}

// FeaturedProjects は注目プロジェクトを調達額の多い順に返す。
func (s *Service) FeaturedProjects(ctx context.Context, limit int) []*model.Project {
	featured := true
	return s.List(ctx, model.ProjectFilter{
		Featured: &featured,
		Order:    model.ProjectOrderMostFunded,
		Limit:    limit,
	})
}

// Get は指定IDのプロジェクトを返す。存在しない場合と取得失敗時はnilを返す。
func (s *Service) Get(ctx context.Context, id string) *model.Project {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "プロジェクトの取得に失敗しました",
			slog.String("project_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return p
}

// GetBySlug はスラッグでプロジェクトを返す。存在しない場合と取得失敗時はnilを返す。
func (s *Service) GetBySlug(ctx context.Context, slug string) *model.Project {
	p, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		slog.ErrorContext(ctx, "プロジェクトの取得に失敗しました",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return p
}

// Stats はサイト全体の集計値を返す。取得失敗時はゼロ値を返す。
func (s *Service) Stats(ctx context.Context) model.PlatformStats {
	stats, err := s.repo.Stats(ctx)
	if err != nil || stats == nil {
		if err != nil {
			slog.ErrorContext(ctx, "集計値の取得に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		return model.PlatformStats{}
	}
	return *stats
}

// Create はプロジェクトを作成する。説明文はサニタイズし、スラッグ未指定時はタイトルから生成する。
// 同じスラッグのプロジェクトが既にある場合は既存のものを返す。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Project, bool, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, false, model.NewValidationError(err.Error())
	}

	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Title)
	}
	if slug == "" {
		return nil, false, model.NewValidationError("title must contain letters or digits")
	}

	existing, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check slug: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	summary := strings.TrimSpace(in.Summary)
	description := in.Description
	if s.sanitizer != nil {
		summary = s.sanitizer.PlainText(summary)
		description = s.sanitizer.Description(description)
	}

	now := time.Now()
	p := &model.Project{
		ID:           uuid.New().String(),
		Title:        strings.TrimSpace(in.Title),
		Slug:         slug,
		Summary:      summary,
		Description:  description,
		Category:     strings.ToLower(strings.TrimSpace(in.Category)),
		Location:     strings.TrimSpace(in.Location),
		ImageURL:     in.ImageURL,
		TargetAmount: in.TargetAmount,
		Status:       model.ProjectStatusActive,
		Featured:     in.Featured,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	inserted, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// 同じスラッグの同時作成に負けた場合は、先に作られた行を返す。
		existing, err := s.repo.FindBySlug(ctx, slug)
		if err != nil {
			return nil, false, fmt.Errorf("failed to reload project: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("project %q was not inserted and could not be found", slug)
		}
		return existing, false, nil
	}

	slog.InfoContext(ctx, "プロジェクトを作成しました",
		slog.String("project_id", p.ID),
		slog.String("slug", p.Slug),
	)
	return p, true, nil
}

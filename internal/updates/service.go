package updates

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// FeedDetector はフィードURL検出のインターフェース。
type FeedDetector interface {
	Detect(ctx context.Context, inputURL string) (string, error)
}

// ProjectFinder はプロジェクトの存在確認に使う。
type ProjectFinder interface {
	FindByID(ctx context.Context, id string) (*model.Project, error)
}

// Service は活動報告の取得元登録と一覧のサービス層。
type Service struct {
	projects ProjectFinder
	sources  repository.UpdateSourceRepository
	updates  repository.ProjectUpdateRepository
	detector FeedDetector
}

// NewService はServiceを生成する。
func NewService(
	projects ProjectFinder,
	sources repository.UpdateSourceRepository,
	updates repository.ProjectUpdateRepository,
	detector FeedDetector,
) *Service {
	return &Service{
		projects: projects,
		sources:  sources,
		updates:  updates,
		detector: detector,
	}
}

// RegisterSource はプロジェクトにフィード取得元を登録する。
// フロー: プロジェクト確認 → フィード検出 → 重複確認 → 保存（次回フェッチは即時）
func (s *Service) RegisterSource(ctx context.Context, projectID, inputURL string) (*model.UpdateSource, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}

	feedURL, err := s.detector.Detect(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.sources.FindByProjectAndFeedURL(ctx, projectID, feedURL)
	if err != nil {
		return nil, fmt.Errorf("取得元の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUpdateSourceError()
	}

	now := time.Now()
	source := &model.UpdateSource{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		SiteURL:     siteRoot(inputURL),
		FeedURL:     feedURL,
		FetchStatus: model.FetchStatusActive,
		NextFetchAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sources.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("取得元の保存に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "活動報告の取得元を登録しました",
		slog.String("project_id", projectID),
		slog.String("source_id", source.ID),
		slog.String("feed_url", feedURL),
	)
	return source, nil
}

// ListByProject はプロジェクトの活動報告を新しい順に返す。取得失敗時は空のスライスを返す。
func (s *Service) ListByProject(ctx context.Context, projectID string, limit int) []*model.ProjectUpdate {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	items, err := s.updates.ListByProject(ctx, projectID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "活動報告の取得に失敗しました",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		return []*model.ProjectUpdate{}
	}
	if items == nil {
		return []*model.ProjectUpdate{}
	}
	return items
}

// siteRoot は入力URLからスキームとホストのみのURLを返す。
func siteRoot(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}

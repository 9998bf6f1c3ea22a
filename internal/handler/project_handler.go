package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/project"
	"github.com/milijuli/sewa/internal/view"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
// 読み取りは失敗時に空を返すため、エラーを返さない。
type ProjectServiceInterface interface {
	List(ctx context.Context, filter model.ProjectFilter) []*model.Project
	Get(ctx context.Context, id string) *model.Project
	GetBySlug(ctx context.Context, slug string) *model.Project
	Stats(ctx context.Context) model.PlatformStats
}

// projectDetailResponse はプロジェクト詳細のレスポンス。
type projectDetailResponse struct {
	view.ProjectCard
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// projectListResponse はプロジェクト一覧のレスポンス。
type projectListResponse struct {
	Projects []view.ProjectCard `json:"projects"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// ProjectHandler はプロジェクト閲覧とダッシュボードのHTTPハンドラー。
type ProjectHandler struct {
	service   ProjectServiceInterface
	dashboard view.DashboardSource
	options   view.DashboardOptions
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface, dashboard view.DashboardSource, options view.DashboardOptions) *ProjectHandler {
	return &ProjectHandler{
		service:   service,
		dashboard: dashboard,
		options:   options,
	}
}

// Dashboard はトップページの表示値を返す。
// GET /api/dashboard
func (h *ProjectHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, view.BuildDashboard(r.Context(), h.dashboard, h.options))
}

// ListProjects はプロジェクト一覧を返す。
// GET /api/projects?category=&status=&featured=&q=&order=&limit=&offset=
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := parseProjectFilter(r)
	if apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	filter = project.NormalizeFilter(filter)

	projects := h.service.List(r.Context(), filter)
	writeJSON(w, http.StatusOK, projectListResponse{
		Projects: view.ProjectCards(projects),
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// GetProject はプロジェクト詳細を返す。
// GET /api/projects/{id}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}
	h.writeProject(w, h.service.Get(r.Context(), id), id)
}

// GetProjectBySlug はスラッグでプロジェクト詳細を返す。
// GET /api/projects/slug/{slug}
func (h *ProjectHandler) GetProjectBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	h.writeProject(w, h.service.GetBySlug(r.Context(), slug), slug)
}

func (h *ProjectHandler) writeProject(w http.ResponseWriter, p *model.Project, ref string) {
	if p == nil {
		writeNotFound(w, model.NewProjectNotFoundError(ref))
		return
	}
	writeJSON(w, http.StatusOK, projectDetailResponse{
		ProjectCard: view.NewProjectCard(p),
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	})
}

// Stats はサイト全体の集計値を返す。
// GET /api/stats
func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, view.NewStats(h.service.Stats(r.Context())))
}

// parseProjectFilter はクエリパラメータから一覧の絞り込み条件を組み立てる。
// 既知でない値は400とし、上限や既定値の補正はproject.NormalizeFilterに任せる。
func parseProjectFilter(r *http.Request) (model.ProjectFilter, *model.APIError) {
	q := r.URL.Query()
	filter := model.ProjectFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
	}

	if s := q.Get("status"); s != "" {
		status := model.ProjectStatus(s)
		switch status {
		case model.ProjectStatusActive, model.ProjectStatusFunded, model.ProjectStatusClosed:
			filter.Status = status
		default:
			return filter, model.NewValidationError("status must be one of active, funded, closed")
		}
	}

	if s := q.Get("order"); s != "" {
		order := model.ProjectOrder(s)
		switch order {
		case model.ProjectOrderNewest, model.ProjectOrderMostFunded, model.ProjectOrderEndingSoon, model.ProjectOrderTitle:
			filter.Order = order
		default:
			return filter, model.NewValidationError("order must be one of newest, most_funded, ending_soon, title")
		}
	}

	if s := q.Get("featured"); s != "" {
		featured, err := strconv.ParseBool(s)
		if err != nil {
			return filter, model.NewValidationError("featured must be true or false")
		}
		filter.Featured = &featured
	}

	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		return filter, model.NewValidationError("limit must be a non-negative integer")
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		return filter, model.NewValidationError("offset must be a non-negative integer")
	}
	filter.Limit = limit
	filter.Offset = offset
	return filter, nil
}

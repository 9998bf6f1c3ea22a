package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/milijuli/sewa/internal/model"
)

// UpdateServiceInterface は活動報告ハンドラーが必要とするサービスインターフェース。
type UpdateServiceInterface interface {
	RegisterSource(ctx context.Context, projectID, inputURL string) (*model.UpdateSource, error)
	ListByProject(ctx context.Context, projectID string, limit int) []*model.ProjectUpdate
}

// registerSourceRequest はPOST /api/projects/{id}/update-sourcesのリクエストボディ。
type registerSourceRequest struct {
	URL string `json:"url"`
}

// updateSourceResponse は登録された取得元のレスポンス。
type updateSourceResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	FeedURL     string    `json:"feed_url"`
	SiteURL     string    `json:"site_url"`
	FetchStatus string    `json:"fetch_status"`
	NextFetchAt time.Time `json:"next_fetch_at"`
}

// projectUpdateResponse は活動報告1件のレスポンス。Contentはサニタイズ済みHTML。
type projectUpdateResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Link            string     `json:"link"`
	Summary         string     `json:"summary,omitempty"`
	Content         string     `json:"content,omitempty"`
	PublishedAt     *time.Time `json:"published_at"`
	IsDateEstimated bool       `json:"is_date_estimated"`
}

// UpdateHandler はプロジェクト活動報告のHTTPハンドラー。
type UpdateHandler struct {
	service UpdateServiceInterface
}

// NewUpdateHandler はUpdateHandlerを生成する。
func NewUpdateHandler(service UpdateServiceInterface) *UpdateHandler {
	return &UpdateHandler{service: service}
}

// RegisterSource はプロジェクトに活動報告フィードを登録する。
// サイトURLを渡した場合はHTMLからフィードを自動検出する。
// POST /api/projects/{id}/update-sources
func (h *UpdateHandler) RegisterSource(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	projectID, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}

	var req registerSourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		handleServiceError(w, r, model.NewInvalidURLError("url is required"))
		return
	}

	src, err := h.service.RegisterSource(r.Context(), projectID, req.URL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, updateSourceResponse{
		ID:          src.ID,
		ProjectID:   src.ProjectID,
		FeedURL:     src.FeedURL,
		SiteURL:     src.SiteURL,
		FetchStatus: string(src.FetchStatus),
		NextFetchAt: src.NextFetchAt,
	})
}

// ListUpdates はプロジェクトの活動報告を新しい順に返す。
// GET /api/projects/{id}/updates?limit=
func (h *UpdateHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		handleServiceError(w, r, model.NewValidationError("limit must be a non-negative integer"))
		return
	}

	items := h.service.ListByProject(r.Context(), projectID, limit)
	out := make([]projectUpdateResponse, 0, len(items))
	for _, u := range items {
		out = append(out, projectUpdateResponse{
			ID:              u.ID,
			Title:           u.Title,
			Link:            u.Link,
			Summary:         u.Summary,
			Content:         u.Content,
			PublishedAt:     u.PublishedAt,
			IsDateEstimated: u.IsDateEstimated,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": out})
}

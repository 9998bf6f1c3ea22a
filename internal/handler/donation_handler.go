package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/milijuli/sewa/internal/donation"
	"github.com/milijuli/sewa/internal/middleware"
	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/view"
)

const (
	defaultDonationListLimit = 20
	maxDonationListLimit     = 100
	defaultDonorListLimit    = 10
	maxDonorListLimit        = 50
)

// DonationServiceInterface は寄付ハンドラーが必要とするサービスインターフェース。
type DonationServiceInterface interface {
	Donate(ctx context.Context, in donation.DonateInput) (*donation.Receipt, error)
	ListByProject(ctx context.Context, projectID string, limit int) []*model.Donation
	TopDonors(ctx context.Context, projectID string, limit int) []model.DonorTotal
	Pledge(ctx context.Context, in donation.PledgeInput) (*model.PhysicalDonation, error)
	ListInKindByProject(ctx context.Context, projectID string) []*model.PhysicalDonation
	UpdateInKindStatus(ctx context.Context, id string, to model.PhysicalDonationStatus) (*model.PhysicalDonation, error)
}

// donationReceiptResponse は寄付完了時のレスポンス。projectは寄付反映後の値。
type donationReceiptResponse struct {
	Donation view.DonationRow `json:"donation"`
	Project  view.ProjectCard `json:"project"`
}

// inKindResponse は物品寄付1件のレスポンス。連絡先は含めない。
type inKindResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	DonorName string    `json:"donor_name"`
	ItemName  string    `json:"item_name"`
	Quantity  int       `json:"quantity"`
	Unit      string    `json:"unit,omitempty"`
	Condition string    `json:"condition,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toInKindResponse(d *model.PhysicalDonation) inKindResponse {
	return inKindResponse{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		DonorName: d.DonorName,
		ItemName:  d.ItemName,
		Quantity:  d.Quantity,
		Unit:      d.Unit,
		Condition: d.Condition,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toInKindResponses(items []*model.PhysicalDonation) []inKindResponse {
	out := make([]inKindResponse, 0, len(items))
	for _, d := range items {
		if d != nil {
			out = append(out, toInKindResponse(d))
		}
	}
	return out
}

// updateInKindStatusRequest はPATCH /api/in-kind/{id}/statusのリクエストボディ。
type updateInKindStatusRequest struct {
	Status string `json:"status"`
}

// DonationHandler は金銭寄付と物品寄付のHTTPハンドラー。
type DonationHandler struct {
	service DonationServiceInterface
}

// NewDonationHandler はDonationHandlerを生成する。
func NewDonationHandler(service DonationServiceInterface) *DonationHandler {
	return &DonationHandler{service: service}
}

// Donate は金銭寄付を受け付ける。ログインしていればユーザーに紐付ける。
// POST /api/projects/{id}/donations
func (h *DonationHandler) Donate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}

	var in donation.DonateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ProjectID = projectID
	in.UserID = optionalUserID(r)
	in.RemoteIP = middleware.ClientIP(r)

	receipt, err := h.service.Donate(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, donationReceiptResponse{
		Donation: view.DonationRows([]*model.Donation{receipt.Donation})[0],
		Project:  view.NewProjectCard(receipt.Project),
	})
}

// ListDonations はプロジェクトへの寄付を新しい順に返す。
// GET /api/projects/{id}/donations?limit=
func (h *DonationHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}
	limit, ok := boundedLimit(w, r, defaultDonationListLimit, maxDonationListLimit)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"donations": view.DonationRows(h.service.ListByProject(r.Context(), projectID, limit)),
	})
}

// Donors はプロジェクトの寄付者を合計額の降順で返す。
// GET /api/projects/{id}/donors?limit=
func (h *DonationHandler) Donors(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}
	limit, ok := boundedLimit(w, r, defaultDonorListLimit, maxDonorListLimit)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"donors": view.DonorRows(h.service.TopDonors(r.Context(), projectID, limit)),
	})
}

// Pledge は物品寄付の申し出を受け付ける。
// POST /api/projects/{id}/in-kind
func (h *DonationHandler) Pledge(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}

	var in donation.PledgeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ProjectID = projectID
	in.UserID = optionalUserID(r)

	pledge, err := h.service.Pledge(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInKindResponse(pledge))
}

// ListInKind はプロジェクトへの物品寄付を返す。
// GET /api/projects/{id}/in-kind
func (h *DonationHandler) ListInKind(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewProjectNotFoundError(chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"in_kind": toInKindResponses(h.service.ListInKindByProject(r.Context(), projectID)),
	})
}

// UpdateInKindStatus は物品寄付の受け渡し状態を進める。
// PATCH /api/in-kind/{id}/status
func (h *DonationHandler) UpdateInKindStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		writeNotFound(w, model.NewInKindNotFoundError(chi.URLParam(r, "id")))
		return
	}

	var req updateInKindStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateInKindStatus(r.Context(), id, model.PhysicalDonationStatus(req.Status))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInKindResponse(updated))
}

// boundedLimit はlimitクエリを読み取り、既定値と上限を適用する。不正な値には400を書き込む。
func boundedLimit(w http.ResponseWriter, r *http.Request, def, maxLimit int) (int, bool) {
	limit, ok := queryInt(r, "limit", def)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit must be a non-negative integer"))
		return 0, false
	}
	if limit == 0 {
		limit = def
	}
	return min(limit, maxLimit), true
}

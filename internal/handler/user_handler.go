package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/middleware"
	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/user"
	"github.com/milijuli/sewa/internal/view"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*user.Profile, error)
	ImpactSummary(ctx context.Context, userID string) (*assistant.DonorImpactSummary, error)
	// Withdraw はユーザーの退会処理を実行する。
	// 寄付の記録はプロジェクトの実績として残す。
	Withdraw(ctx context.Context, userID string) error
}

type profileDonationResponse struct {
	view.DonationRow
	ProjectTitle string `json:"project_title"`
	Anonymous    bool   `json:"anonymous"`
}

type profileResponse struct {
	ID                string                    `json:"id"`
	Email             string                    `json:"email"`
	Name              string                    `json:"name"`
	AvatarURL         string                    `json:"avatar_url,omitempty"`
	MemberSince       time.Time                 `json:"member_since"`
	TotalGiven        int64                     `json:"total_given"`
	TotalGivenLabel   string                    `json:"total_given_label"`
	GiftCount         int                       `json:"gift_count"`
	ProjectsSupported int                       `json:"projects_supported"`
	Donations         []profileDonationResponse `json:"donations"`
	InKind            []inKindResponse          `json:"in_kind"`
}

// UserHandler はログインユーザー自身のプロフィールを扱うHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookie  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。cookieは退会時のセッションCookie削除に使う。
func NewUserHandler(service UserServiceInterface, cookie AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookie:  cookie,
	}
}

// Me はログインユーザーのプロフィールと寄付履歴を返す。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	donations := make([]profileDonationResponse, 0, len(p.Donations))
	for _, d := range p.Donations {
		// 本人の履歴なので匿名寄付でも名前を表示する
		row := view.DonationRows([]*model.Donation{&d.Donation})[0]
		row.DonorName = d.DonorName
		donations = append(donations, profileDonationResponse{
			DonationRow:  row,
			ProjectTitle: d.ProjectTitle,
			Anonymous:    d.Anonymous,
		})
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:                p.User.ID,
		Email:             p.User.Email,
		Name:              p.User.Name,
		AvatarURL:         p.User.AvatarURL,
		MemberSince:       p.User.CreatedAt,
		TotalGiven:        p.TotalGiven,
		TotalGivenLabel:   view.FormatNPR(p.TotalGiven),
		GiftCount:         p.GiftCount,
		ProjectsSupported: p.ProjectsSupported,
		Donations:         donations,
		InKind:            toInKindResponses(p.InKind),
	})
}

// Impact はログインユーザーの寄付履歴からインパクトサマリーを生成する。
// GET /api/me/impact
func (h *UserHandler) Impact(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.ImpactSummary(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Withdraw はユーザーの退会処理を実行し、セッションCookieを削除する。
// DELETE /api/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"net/http"

	"github.com/milijuli/sewa/internal/model"
)

// ContentStore は静的コンテンツの取得元。*content.Storeが満たす。
type ContentStore interface {
	FAQCorpus
	Team() []model.TeamMember
}

type faqResponse struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

type teamMemberResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Bio      string `json:"bio"`
	ImageURL string `json:"image_url,omitempty"`
}

// ContentHandler はよくある質問とチーム紹介のHTTPハンドラー。
type ContentHandler struct {
	store ContentStore
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(store ContentStore) *ContentHandler {
	return &ContentHandler{store: store}
}

// FAQs はよくある質問を返す。categoryを指定した場合はそのカテゴリのみ返す。
// GET /api/faqs?category=
func (h *ContentHandler) FAQs(w http.ResponseWriter, r *http.Request) {
	faqs := h.store.FAQs(r.URL.Query().Get("category"))
	out := make([]faqResponse, 0, len(faqs))
	for _, f := range faqs {
		out = append(out, faqResponse(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"faqs": out})
}

// Team は運営チームのメンバーを返す。
// GET /api/team
func (h *ContentHandler) Team(w http.ResponseWriter, r *http.Request) {
	team := h.store.Team()
	out := make([]teamMemberResponse, 0, len(team))
	for _, m := range team {
		out = append(out, teamMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": out})
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/model"
)

// AssistantServiceInterface は文章作成ハンドラーが必要とするサービスインターフェース。
type AssistantServiceInterface interface {
	ThankYouEmail(ctx context.Context, userID string, in assistant.ThankYouEmailInput) (*assistant.Email, error)
	ProjectSEO(ctx context.Context, userID string, in assistant.ProjectSEOInput) (*assistant.ProjectSEO, error)
	CampaignStory(ctx context.Context, userID string, in assistant.CampaignStoryInput) (*assistant.CampaignStory, error)
	InKindAcknowledgement(ctx context.Context, userID string, in assistant.InKindAckInput) (*assistant.Email, error)
	FAQAnswer(ctx context.Context, userID string, in assistant.FAQAnswerInput) (*assistant.FAQAnswer, error)
}

// FAQCorpus はFAQ回答の根拠となる質問集。
type FAQCorpus interface {
	FAQs(category string) []model.FAQ
	FAQ(id string) (model.FAQ, bool)
}

// faqQuestionRequest はPOST /api/assistant/faqのリクエストボディ。
type faqQuestionRequest struct {
	Question string `json:"question"`
	Category string `json:"category"`
}

type faqAnswerResponse struct {
	Answer    string        `json:"answer"`
	Confident bool          `json:"confident"`
	Related   []faqResponse `json:"related"`
}

// AssistantHandler は生成モデルによる文章作成のHTTPハンドラー。
// プレビュー用途のため、生成したメールはここからは送信しない。
type AssistantHandler struct {
	service AssistantServiceInterface
	faqs    FAQCorpus
}

// NewAssistantHandler はAssistantHandlerを生成する。
func NewAssistantHandler(service AssistantServiceInterface, faqs FAQCorpus) *AssistantHandler {
	return &AssistantHandler{
		service: service,
		faqs:    faqs,
	}
}

// ThankYou は寄付者へのお礼メールを生成する。
// POST /api/assistant/thank-you
func (h *AssistantHandler) ThankYou(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in assistant.ThankYouEmailInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.DonorEmail = ""
	out, err := h.service.ThankYouEmail(r.Context(), userID, in)
	writeResult(w, r, out, err)
}

// SEO はプロジェクトページのメタデータを生成する。
// POST /api/assistant/seo
func (h *AssistantHandler) SEO(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in assistant.ProjectSEOInput
	if !decodeJSON(w, r, &in) {
		return
	}
	out, err := h.service.ProjectSEO(r.Context(), userID, in)
	writeResult(w, r, out, err)
}

// Story はキャンペーンストーリーを生成する。
// POST /api/assistant/story
func (h *AssistantHandler) Story(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in assistant.CampaignStoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	out, err := h.service.CampaignStory(r.Context(), userID, in)
	writeResult(w, r, out, err)
}

// InKindAck は物品寄付の受付メールを生成する。
// POST /api/assistant/in-kind-ack
func (h *AssistantHandler) InKindAck(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in assistant.InKindAckInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.DonorEmail = ""
	out, err := h.service.InKindAcknowledgement(r.Context(), userID, in)
	writeResult(w, r, out, err)
}

// FAQ は質問に対してFAQを根拠とした回答を生成する。未ログインでも利用できる。
// POST /api/assistant/faq
func (h *AssistantHandler) FAQ(w http.ResponseWriter, r *http.Request) {
	var req faqQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := h.service.FAQAnswer(r.Context(), optionalUserID(r), assistant.FAQAnswerInput{
		Question: strings.TrimSpace(req.Question),
		FAQs:     h.faqs.FAQs(req.Category),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	related := make([]faqResponse, 0, len(answer.RelatedIDs))
	for _, id := range answer.RelatedIDs {
		if f, ok := h.faqs.FAQ(id); ok {
			related = append(related, faqResponse(f))
		}
	}
	writeJSON(w, http.StatusOK, faqAnswerResponse{
		Answer:    answer.Answer,
		Confident: answer.Confident,
		Related:   related,
	})
}

// writeResult は生成結果を200で、エラーをAPIエラーとして書き込む。
func writeResult[T any](w http.ResponseWriter, r *http.Request, out *T, err error) {
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/llm"
	"github.com/milijuli/sewa/internal/model"
)

func TestAssistantHandler_ThankYou_NeverSendsEmail(t *testing.T) {
	var got assistant.ThankYouEmailInput
	svc := &mockAssistantService{
		thankYouFn: func(_ context.Context, userID string, in assistant.ThankYouEmailInput) (*assistant.Email, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			got = in
			return &assistant.Email{Subject: "Thank you, Sita", Body: "Dear Sita, ..."}, nil
		},
	}
	h := NewAssistantHandler(svc, testContent())

	body := `{"donor_name":"Sita","donor_email":"sita@example.com","project_title":"Clean Water","amount":2500}`
	req := withUserID(jsonRequest(http.MethodPost, "/api/assistant/thank-you", body), "user-1")
	w := httptest.NewRecorder()
	h.ThankYou(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.DonorEmail != "" {
		t.Errorf("DonorEmail = %q, preview requests must not send mail", got.DonorEmail)
	}
	if got.Amount != 2500 || got.ProjectTitle != "Clean Water" {
		t.Errorf("input = %+v", got)
	}

	var resp assistant.Email
	decodeBody(t, w, &resp)
	if resp.Subject != "Thank you, Sita" {
		t.Errorf("subject = %q", resp.Subject)
	}
}

func TestAssistantHandler_RequiresSession(t *testing.T) {
	h := NewAssistantHandler(&mockAssistantService{}, testContent())

	handlers := map[string]http.HandlerFunc{
		"thank-you":   h.ThankYou,
		"seo":         h.SEO,
		"story":       h.Story,
		"in-kind-ack": h.InKindAck,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			req := jsonRequest(http.MethodPost, "/api/assistant/"+name, `{}`)
			w := httptest.NewRecorder()
			fn(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAssistantHandler_GenerationErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"代替モデルも利用不可", fmt.Errorf("fallback: %w", llm.ErrModelUnavailable), http.StatusServiceUnavailable, model.ErrCodeGenerationUnavailable},
		{"出力がスキーマを満たさない", assistant.ErrInvalidOutput, http.StatusBadGateway, model.ErrCodeGenerationFailed},
		{"生成が無効", model.NewGenerationDisabledError(), http.StatusServiceUnavailable, model.ErrCodeGenerationDisabled},
		{"入力検証エラー", model.NewValidationError("title is required"), http.StatusBadRequest, model.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAssistantService{
				seoFn: func(context.Context, string, assistant.ProjectSEOInput) (*assistant.ProjectSEO, error) {
					return nil, tt.err
				},
			}
			h := NewAssistantHandler(svc, testContent())

			req := withUserID(jsonRequest(http.MethodPost, "/api/assistant/seo", `{"title":"Water","summary":"Taps"}`), "user-1")
			w := httptest.NewRecorder()
			h.SEO(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := parseAPIErrorResponse(t, w)["code"]; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestAssistantHandler_Story(t *testing.T) {
	svc := &mockAssistantService{
		storyFn: func(_ context.Context, _ string, in assistant.CampaignStoryInput) (*assistant.CampaignStory, error) {
			if in.Tone != "hopeful" {
				t.Errorf("tone = %q, want hopeful", in.Tone)
			}
			return &assistant.CampaignStory{
				Headline:     "Water within reach",
				Paragraphs:   []string{"..."},
				CallToAction: "Give today",
			}, nil
		},
	}
	h := NewAssistantHandler(svc, testContent())

	body := `{"title":"Water","summary":"Taps","target_amount":200000,"tone":"hopeful"}`
	req := withUserID(jsonRequest(http.MethodPost, "/api/assistant/story", body), "user-1")
	w := httptest.NewRecorder()
	h.Story(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAssistantHandler_InKindAck_NeverSendsEmail(t *testing.T) {
	var got assistant.InKindAckInput
	svc := &mockAssistantService{
		inKindAckFn: func(_ context.Context, _ string, in assistant.InKindAckInput) (*assistant.Email, error) {
			got = in
			return &assistant.Email{Subject: "We received your pledge", Body: "..."}, nil
		},
	}
	h := NewAssistantHandler(svc, testContent())

	body := `{"donor_name":"Hari","donor_email":"hari@example.com","item_name":"Blankets","quantity":20,"project_title":"Winter Relief"}`
	req := withUserID(jsonRequest(http.MethodPost, "/api/assistant/in-kind-ack", body), "user-1")
	w := httptest.NewRecorder()
	h.InKindAck(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.DonorEmail != "" {
		t.Errorf("DonorEmail = %q, preview requests must not send mail", got.DonorEmail)
	}
}

func TestAssistantHandler_FAQ_UsesCorpusAndResolvesRelated(t *testing.T) {
	var got assistant.FAQAnswerInput
	svc := &mockAssistantService{
		faqFn: func(_ context.Context, userID string, in assistant.FAQAnswerInput) (*assistant.FAQAnswer, error) {
			if userID != "" {
				t.Errorf("userID = %q, want empty for an anonymous visitor", userID)
			}
			got = in
			return &assistant.FAQAnswer{
				Answer:     "Yes, you will get a receipt by email.",
				RelatedIDs: []string{"tax-receipt", "missing-id"},
				Confident:  true,
			}, nil
		},
	}
	h := NewAssistantHandler(svc, testContent())

	body := `{"question":"  Will I get a receipt?  ","category":"donating"}`
	req := jsonRequest(http.MethodPost, "/api/assistant/faq", body)
	w := httptest.NewRecorder()
	h.FAQ(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Question != "Will I get a receipt?" {
		t.Errorf("question = %q", got.Question)
	}
	if len(got.FAQs) != 2 {
		t.Errorf("len(FAQs) = %d, want 2 (category filter)", len(got.FAQs))
	}

	var resp faqAnswerResponse
	decodeBody(t, w, &resp)
	if !resp.Confident {
		t.Error("confident should be true")
	}
	if len(resp.Related) != 1 || resp.Related[0].ID != "tax-receipt" {
		t.Errorf("related = %+v, want only tax-receipt", resp.Related)
	}
}

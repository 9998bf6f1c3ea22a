package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/milijuli/sewa/internal/llm"
	"github.com/milijuli/sewa/internal/model"
)

type fakeGenerator struct {
	text     string
	model    string
	err      error
	requests []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	m := f.model
	if m == "" {
		m = "test-model"
	}
	return &llm.Response{Text: f.text, Model: m}, nil
}

type fakeGenerationRepo struct {
	created []*model.Generation
	err     error
}

func (f *fakeGenerationRepo) Create(_ context.Context, g *model.Generation) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, g)
	return nil
}

func (f *fakeGenerationRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeMailer struct {
	sent []*model.OutboxEmail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, e *model.OutboxEmail) error {
	f.sent = append(f.sent, e)
	return f.err
}

func validThankYouInput() ThankYouEmailInput {
	return ThankYouEmailInput{
		DonorName:    "Sita Sharma",
		DonorEmail:   "sita@example.com",
		ProjectTitle: "Clean water for Dhading",
		Amount:       25000,
		Message:      "For the children",
	}
}

func TestThankYouEmail_GeneratesRecordsAndSends(t *testing.T) {
	gen := &fakeGenerator{text: `{"subject":"Thank you, Sita","body":"Dear Sita, ..."}`}
	repo := &fakeGenerationRepo{}
	mailer := &fakeMailer{}
	s := NewService(gen, repo, mailer)

	email, err := s.ThankYouEmail(context.Background(), "user-1", validThankYouInput())

	require.NoError(t, err)
	assert.Equal(t, "Thank you, Sita", email.Subject)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Contains(t, req.Prompt, "Sita Sharma")
	assert.Contains(t, req.Prompt, "Clean water for Dhading")
	assert.Contains(t, req.Prompt, "NPR 25,000")
	assert.Contains(t, req.Prompt, "For the children")
	assert.Equal(t, emailSchema, req.Schema)
	assert.NotEmpty(t, req.System)

	require.Len(t, repo.created, 1)
	assert.Equal(t, model.GenerationThankYouEmail, repo.created[0].Kind)
	assert.Equal(t, "test-model", repo.created[0].Model)
	assert.Equal(t, "user-1", repo.created[0].UserID)
	assert.JSONEq(t, `{"subject":"Thank you, Sita","body":"Dear Sita, ..."}`, repo.created[0].Output)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "sita@example.com", mailer.sent[0].Recipient)
	assert.Equal(t, model.GenerationThankYouEmail, mailer.sent[0].Kind)
}

func TestThankYouEmail_NoRecipientSkipsSend(t *testing.T) {
	gen := &fakeGenerator{text: `{"subject":"s","body":"b"}`}
	mailer := &fakeMailer{}
	s := NewService(gen, nil, mailer)

	in := validThankYouInput()
	in.DonorEmail = ""
	_, err := s.ThankYouEmail(context.Background(), "", in)

	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestThankYouEmail_MailerAndLogFailuresDoNotFail(t *testing.T) {
	gen := &fakeGenerator{text: `{"subject":"s","body":"b"}`}
	s := NewService(gen, &fakeGenerationRepo{err: errors.New("db down")}, &fakeMailer{err: errors.New("smtp down")})

	email, err := s.ThankYouEmail(context.Background(), "", validThankYouInput())

	require.NoError(t, err)
	assert.Equal(t, "s", email.Subject)
}

func TestInputValidation_RejectsBeforeCallingModel(t *testing.T) {
	gen := &fakeGenerator{text: `{}`}
	s := NewService(gen, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"thank-you zero amount", func() error {
			in := validThankYouInput()
			in.Amount = 0
			_, err := s.ThankYouEmail(ctx, "", in)
			return err
		}, "amount"},
		{"thank-you bad email", func() error {
			in := validThankYouInput()
			in.DonorEmail = "not-an-email"
			_, err := s.ThankYouEmail(ctx, "", in)
			return err
		}, "donor_email"},
		{"seo missing title", func() error {
			_, err := s.ProjectSEO(ctx, "", ProjectSEOInput{Summary: "x"})
			return err
		}, "title"},
		{"story unknown tone", func() error {
			_, err := s.CampaignStory(ctx, "", CampaignStoryInput{Title: "t", Summary: "s", TargetAmount: 10, Tone: "angry"})
			return err
		}, "tone"},
		{"impact without gifts", func() error {
			_, err := s.DonorImpactSummary(ctx, "", DonorImpactInput{DonorName: "Ram"})
			return err
		}, "gifts"},
		{"impact gift without amount", func() error {
			_, err := s.DonorImpactSummary(ctx, "", DonorImpactInput{DonorName: "Ram", Gifts: []ImpactGift{{ProjectTitle: "p"}}})
			return err
		}, "amount"},
		{"in-kind zero quantity", func() error {
			_, err := s.InKindAcknowledgement(ctx, "", InKindAckInput{DonorName: "Ram", ItemName: "Blanket", ProjectTitle: "p"})
			return err
		}, "quantity"},
		{"faq empty question", func() error {
			_, err := s.FAQAnswer(ctx, "", FAQAnswerInput{FAQs: []model.FAQ{{ID: "a"}}})
			return err
		}, "question"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var apiErr *model.APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
			assert.Equal(t, model.ErrCodeValidation, apiErr.Code)
			assert.Contains(t, apiErr.Message, tt.field)
		})
	}
	assert.Empty(t, gen.requests)
}

func TestOutputValidation_InvalidOutputNeverReturnsPartialValue(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", "Sorry, I cannot help with that."},
		{"missing required field", `{"meta_title":"Clean water"}`},
		{"meta title too long", `{"meta_title":"` + strings.Repeat("x", 61) + `","meta_description":"d","keywords":["a"]}`},
		{"description too long", `{"meta_title":"t","meta_description":"` + strings.Repeat("x", 161) + `","keywords":["a"]}`},
		{"no keywords", `{"meta_title":"t","meta_description":"d","keywords":[]}`},
		{"too many keywords", `{"meta_title":"t","meta_description":"d","keywords":["1","2","3","4","5","6","7","8","9","10","11"]}`},
		{"empty keyword", `{"meta_title":"t","meta_description":"d","keywords":["a",""]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeGenerationRepo{}
			s := NewService(&fakeGenerator{text: tt.text}, repo, nil)

			seo, err := s.ProjectSEO(context.Background(), "", ProjectSEOInput{Title: "Clean water", Summary: "Wells for Dhading"})

			assert.Nil(t, seo)
			assert.ErrorIs(t, err, ErrInvalidOutput)
			assert.Empty(t, repo.created)
		})
	}
}

func TestOutputValidation_EveryFlowRejectsInvalidOutput(t *testing.T) {
	ctx := context.Background()
	thankYou := func(s *Service) (any, error) { return s.ThankYouEmail(ctx, "", validThankYouInput()) }
	inKind := func(s *Service) (any, error) {
		return s.InKindAcknowledgement(ctx, "", InKindAckInput{
			DonorName: "Maya", DonorEmail: "maya@example.com", ItemName: "Blanket", Quantity: 20, ProjectTitle: "Winter relief",
		})
	}
	story := func(s *Service) (any, error) {
		return s.CampaignStory(ctx, "", CampaignStoryInput{Title: "Clean water", Summary: "Wells", TargetAmount: 500000})
	}
	impact := func(s *Service) (any, error) {
		return s.DonorImpactSummary(ctx, "", DonorImpactInput{
			DonorName: "Ram", Gifts: []ImpactGift{{ProjectTitle: "School roof", Amount: 1000}},
		})
	}
	faq := func(s *Service) (any, error) {
		return s.FAQAnswer(ctx, "", FAQAnswerInput{Question: "Minimum?", FAQs: []model.FAQ{{ID: "faq-1", Question: "Minimum?", Answer: "None."}}})
	}

	longSubject := strings.Repeat("x", 151)
	nineParagraphs := `["1","2","3","4","5","6","7","8","9"]`

	tests := []struct {
		name string
		call func(s *Service) (any, error)
		text string
	}{
		{"thank-you missing body", thankYou, `{"subject":"Thank you"}`},
		{"thank-you subject too long", thankYou, `{"subject":"` + longSubject + `","body":"b"}`},
		{"in-kind missing body", inKind, `{"subject":"We received your pledge"}`},
		{"in-kind subject too long", inKind, `{"subject":"` + longSubject + `","body":"b"}`},
		{"story without paragraphs", story, `{"headline":"h","paragraphs":[],"call_to_action":"Give"}`},
		{"story too many paragraphs", story, `{"headline":"h","paragraphs":` + nineParagraphs + `,"call_to_action":"Give"}`},
		{"impact empty summary", impact, `{"summary":"","highlights":["a"]}`},
		{"impact too many highlights", impact, `{"summary":"s","highlights":["1","2","3","4","5","6"]}`},
		{"faq empty answer", faq, `{"answer":"","related_ids":[],"confident":false}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeGenerationRepo{}
			mailer := &fakeMailer{}
			s := NewService(&fakeGenerator{text: tt.text}, repo, mailer)

			out, err := tt.call(s)

			assert.Nil(t, out)
			assert.ErrorIs(t, err, ErrInvalidOutput)
			assert.Empty(t, repo.created)
			assert.Empty(t, mailer.sent)
		})
	}
}

func TestProjectSEO_AcceptsFencedJSON(t *testing.T) {
	text := "```json\n{\"meta_title\":\"Clean water for Dhading\",\"meta_description\":\"Help bring safe water.\",\"keywords\":[\"nepal\",\"water\"]}\n```"
	s := NewService(&fakeGenerator{text: text}, nil, nil)

	seo, err := s.ProjectSEO(context.Background(), "", ProjectSEOInput{Title: "Clean water", Summary: "Wells", Location: "Dhading"})

	require.NoError(t, err)
	assert.Equal(t, "Clean water for Dhading", seo.MetaTitle)
	assert.Equal(t, []string{"nepal", "water"}, seo.Keywords)
}

func TestCampaignStory_DefaultToneAndOutput(t *testing.T) {
	gen := &fakeGenerator{text: `{"headline":"Water, at last","paragraphs":["One","Two"],"call_to_action":"Give today."}`}
	s := NewService(gen, nil, nil)

	story, err := s.CampaignStory(context.Background(), "", CampaignStoryInput{
		Title: "Clean water", Summary: "Wells", TargetAmount: 500000, Beneficiaries: "120 families",
	})

	require.NoError(t, err)
	assert.Len(t, story.Paragraphs, 2)
	assert.Contains(t, gen.requests[0].Prompt, "Tone: hopeful")
	assert.Contains(t, gen.requests[0].Prompt, "NPR 500,000")
	assert.Contains(t, gen.requests[0].Prompt, "120 families")
}

func TestDonorImpactSummary_PromptListsGiftsAndTotal(t *testing.T) {
	gen := &fakeGenerator{text: `{"summary":"Thank you, Ram.","highlights":["Funded a roof"]}`}
	s := NewService(gen, nil, nil)

	out, err := s.DonorImpactSummary(context.Background(), "u", DonorImpactInput{
		DonorName: "Ram",
		Gifts: []ImpactGift{
			{ProjectTitle: "School roof", Amount: 1000},
			{ProjectTitle: "Clean water", Amount: 2500},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Funded a roof"}, out.Highlights)
	prompt := gen.requests[0].Prompt
	assert.Contains(t, prompt, `NPR 1,000 to "School roof"`)
	assert.Contains(t, prompt, "Total given: NPR 3,500")
}

func TestInKindAcknowledgement_SendsToDonor(t *testing.T) {
	gen := &fakeGenerator{text: `{"subject":"We received your pledge","body":"Thank you for 20 blankets."}`}
	mailer := &fakeMailer{}
	s := NewService(gen, nil, mailer)

	_, err := s.InKindAcknowledgement(context.Background(), "", InKindAckInput{
		DonorName: "Maya", DonorEmail: "maya@example.com", ItemName: "Blanket", Quantity: 20, Unit: "pcs", ProjectTitle: "Winter relief",
	})

	require.NoError(t, err)
	assert.Contains(t, gen.requests[0].Prompt, "Quantity: 20 pcs")
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, model.GenerationInKindAck, mailer.sent[0].Kind)
}

func TestFAQAnswer_FiltersUnknownRelatedIDs(t *testing.T) {
	gen := &fakeGenerator{text: `{"answer":"Yes, tick give anonymously.","related_ids":["faq-1","made-up","faq-1"],"confident":true}`}
	s := NewService(gen, nil, nil)

	out, err := s.FAQAnswer(context.Background(), "", FAQAnswerInput{
		Question: "Can I give anonymously?",
		FAQs: []model.FAQ{
			{ID: "faq-1", Question: "Can I donate anonymously?", Answer: "Yes."},
			{ID: "faq-2", Question: "Minimum?", Answer: "None."},
		},
	})

	require.NoError(t, err)
	assert.True(t, out.Confident)
	assert.Equal(t, []string{"faq-1"}, out.RelatedIDs)
	assert.Contains(t, gen.requests[0].Prompt, "[faq-2] Q: Minimum?")
	assert.Contains(t, gen.requests[0].Prompt, "Visitor question: Can I give anonymously?")
}

func TestGeneratorErrorsPropagateUnchanged(t *testing.T) {
	apiErr := genai.APIError{Code: 400, Message: "bad request"}
	s := NewService(&fakeGenerator{err: apiErr}, nil, nil)

	_, err := s.ProjectSEO(context.Background(), "", ProjectSEOInput{Title: "t", Summary: "s"})

	var got genai.APIError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 400, got.Code)
}

func TestDisabledService(t *testing.T) {
	s := NewService(nil, nil, nil)
	assert.False(t, s.Enabled())

	_, err := s.FAQAnswer(context.Background(), "", FAQAnswerInput{Question: "q", FAQs: []model.FAQ{{ID: "a"}}})

	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, model.ErrCodeGenerationDisabled, apiErr.Code)
}

func TestAllPromptsRender(t *testing.T) {
	inputs := map[model.GenerationKind]any{
		model.GenerationThankYouEmail: validThankYouInput(),
		model.GenerationProjectSEO:    ProjectSEOInput{Title: "t", Summary: "s"},
		model.GenerationCampaignStory: CampaignStoryInput{Title: "t", Summary: "s", TargetAmount: 1},
		model.GenerationDonorImpact:   DonorImpactInput{DonorName: "d", Gifts: []ImpactGift{{ProjectTitle: "p", Amount: 1}}},
		model.GenerationInKindAck:     InKindAckInput{DonorName: "d", ItemName: "i", Quantity: 1, ProjectTitle: "p"},
		model.GenerationFAQAnswer:     FAQAnswerInput{Question: "q", FAQs: []model.FAQ{{ID: "a", Question: "q", Answer: "a"}}},
	}
	for kind, in := range inputs {
		t.Run(string(kind), func(t *testing.T) {
			prompt, err := render(string(kind), in)
			require.NoError(t, err)
			assert.Contains(t, prompt, "Return JSON")
		})
	}
}

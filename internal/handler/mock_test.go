package handler

import (
	"context"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/donation"
	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/user"
)

// --- モック定義 ---

type mockProjectService struct {
	listFn      func(ctx context.Context, filter model.ProjectFilter) []*model.Project
	getFn       func(ctx context.Context, id string) *model.Project
	getBySlugFn func(ctx context.Context, slug string) *model.Project
	stats       model.PlatformStats
}

func (m *mockProjectService) List(ctx context.Context, filter model.ProjectFilter) []*model.Project {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []*model.Project{}
}

func (m *mockProjectService) Get(ctx context.Context, id string) *model.Project {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil
}

func (m *mockProjectService) GetBySlug(ctx context.Context, slug string) *model.Project {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil
}

func (m *mockProjectService) Stats(context.Context) model.PlatformStats {
	return m.stats
}

type mockDashboardSource struct {
	featured  []*model.Project
	stats     model.PlatformStats
	donations []*model.Donation
}

func (m *mockDashboardSource) FeaturedProjects(context.Context, int) []*model.Project {
	return m.featured
}

func (m *mockDashboardSource) Stats(context.Context) model.PlatformStats {
	return m.stats
}

func (m *mockDashboardSource) RecentDonations(context.Context, int) []*model.Donation {
	return m.donations
}

type mockDonationService struct {
	donateFn       func(ctx context.Context, in donation.DonateInput) (*donation.Receipt, error)
	listFn         func(ctx context.Context, projectID string, limit int) []*model.Donation
	topDonorsFn    func(ctx context.Context, projectID string, limit int) []model.DonorTotal
	pledgeFn       func(ctx context.Context, in donation.PledgeInput) (*model.PhysicalDonation, error)
	listInKindFn   func(ctx context.Context, projectID string) []*model.PhysicalDonation
	updateStatusFn func(ctx context.Context, id string, to model.PhysicalDonationStatus) (*model.PhysicalDonation, error)
}

func (m *mockDonationService) Donate(ctx context.Context, in donation.DonateInput) (*donation.Receipt, error) {
	if m.donateFn != nil {
		return m.donateFn(ctx, in)
	}
	return nil, nil
}

func (m *mockDonationService) ListByProject(ctx context.Context, projectID string, limit int) []*model.Donation {
	if m.listFn != nil {
		return m.listFn(ctx, projectID, limit)
	}
	return []*model.Donation{}
}

func (m *mockDonationService) TopDonors(ctx context.Context, projectID string, limit int) []model.DonorTotal {
	if m.topDonorsFn != nil {
		return m.topDonorsFn(ctx, projectID, limit)
	}
	return []model.DonorTotal{}
}

func (m *mockDonationService) Pledge(ctx context.Context, in donation.PledgeInput) (*model.PhysicalDonation, error) {
	if m.pledgeFn != nil {
		return m.pledgeFn(ctx, in)
	}
	return nil, nil
}

func (m *mockDonationService) ListInKindByProject(ctx context.Context, projectID string) []*model.PhysicalDonation {
	if m.listInKindFn != nil {
		return m.listInKindFn(ctx, projectID)
	}
	return []*model.PhysicalDonation{}
}

func (m *mockDonationService) UpdateInKindStatus(ctx context.Context, id string, to model.PhysicalDonationStatus) (*model.PhysicalDonation, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, to)
	}
	return nil, nil
}

type mockUpdateService struct {
	registerFn func(ctx context.Context, projectID, inputURL string) (*model.UpdateSource, error)
	listFn     func(ctx context.Context, projectID string, limit int) []*model.ProjectUpdate
}

func (m *mockUpdateService) RegisterSource(ctx context.Context, projectID, inputURL string) (*model.UpdateSource, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, projectID, inputURL)
	}
	return nil, nil
}

func (m *mockUpdateService) ListByProject(ctx context.Context, projectID string, limit int) []*model.ProjectUpdate {
	if m.listFn != nil {
		return m.listFn(ctx, projectID, limit)
	}
	return []*model.ProjectUpdate{}
}

type mockUserService struct {
	profileFn  func(ctx context.Context, userID string) (*user.Profile, error)
	impactFn   func(ctx context.Context, userID string) (*assistant.DonorImpactSummary, error)
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Profile(ctx context.Context, userID string) (*user.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) ImpactSummary(ctx context.Context, userID string) (*assistant.DonorImpactSummary, error) {
	if m.impactFn != nil {
		return m.impactFn(ctx, userID)
	}
	return nil, model.NewGenerationDisabledError()
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

type mockAssistantService struct {
	thankYouFn  func(ctx context.Context, userID string, in assistant.ThankYouEmailInput) (*assistant.Email, error)
	seoFn       func(ctx context.Context, userID string, in assistant.ProjectSEOInput) (*assistant.ProjectSEO, error)
	storyFn     func(ctx context.Context, userID string, in assistant.CampaignStoryInput) (*assistant.CampaignStory, error)
	inKindAckFn func(ctx context.Context, userID string, in assistant.InKindAckInput) (*assistant.Email, error)
	faqFn       func(ctx context.Context, userID string, in assistant.FAQAnswerInput) (*assistant.FAQAnswer, error)
}

func (m *mockAssistantService) ThankYouEmail(ctx context.Context, userID string, in assistant.ThankYouEmailInput) (*assistant.Email, error) {
	if m.thankYouFn != nil {
		return m.thankYouFn(ctx, userID, in)
	}
	return nil, model.NewGenerationDisabledError()
}

func (m *mockAssistantService) ProjectSEO(ctx context.Context, userID string, in assistant.ProjectSEOInput) (*assistant.ProjectSEO, error) {
	if m.seoFn != nil {
		return m.seoFn(ctx, userID, in)
	}
	return nil, model.NewGenerationDisabledError()
}

func (m *mockAssistantService) CampaignStory(ctx context.Context, userID string, in assistant.CampaignStoryInput) (*assistant.CampaignStory, error) {
	if m.storyFn != nil {
		return m.storyFn(ctx, userID, in)
	}
	return nil, model.NewGenerationDisabledError()
}

func (m *mockAssistantService) InKindAcknowledgement(ctx context.Context, userID string, in assistant.InKindAckInput) (*assistant.Email, error) {
	if m.inKindAckFn != nil {
		return m.inKindAckFn(ctx, userID, in)
	}
	return nil, model.NewGenerationDisabledError()
}

func (m *mockAssistantService) FAQAnswer(ctx context.Context, userID string, in assistant.FAQAnswerInput) (*assistant.FAQAnswer, error) {
	if m.faqFn != nil {
		return m.faqFn(ctx, userID, in)
	}
	return nil, model.NewGenerationDisabledError()
}

type stubContent struct {
	faqs []model.FAQ
	team []model.TeamMember
}

func (s *stubContent) FAQs(category string) []model.FAQ {
	out := []model.FAQ{}
	for _, f := range s.faqs {
		if category == "" || f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func (s *stubContent) FAQ(id string) (model.FAQ, bool) {
	for _, f := range s.faqs {
		if f.ID == id {
			return f, true
		}
	}
	return model.FAQ{}, false
}

func (s *stubContent) Team() []model.TeamMember {
	return s.team
}

func testContent() *stubContent {
	return &stubContent{
		faqs: []model.FAQ{
			{ID: "tax-receipt", Question: "Do I get a receipt?", Answer: "Yes, by email.", Category: "donating"},
			{ID: "in-kind", Question: "Can I give goods?", Answer: "Yes, pledge them on the project page.", Category: "donating"},
			{ID: "who-we-are", Question: "Who runs milijuli sewa?", Answer: "A volunteer team in Kathmandu.", Category: "about"},
		},
		team: []model.TeamMember{
			{ID: "asha", Name: "Asha Gurung", Role: "Coordinator", Bio: "Runs field visits."},
		},
	}
}

func testProject() *model.Project {
	return &model.Project{
		ID:           testProjectID,
		Title:        "Clean Water for Sindhupalchok",
		Slug:         "clean-water-sindhupalchok",
		Summary:      "Gravity-fed water taps for 40 households.",
		Description:  "<p>Details</p>",
		Category:     "water",
		TargetAmount: 200000,
		RaisedAmount: 50000,
		DonorCount:   12,
		Status:       model.ProjectStatusActive,
	}
}

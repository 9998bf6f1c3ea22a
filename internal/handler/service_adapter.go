package handler

import (
	"context"

	"github.com/milijuli/sewa/internal/assistant"
	"github.com/milijuli/sewa/internal/auth"
	"github.com/milijuli/sewa/internal/content"
	"github.com/milijuli/sewa/internal/donation"
	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/project"
	"github.com/milijuli/sewa/internal/updates"
	"github.com/milijuli/sewa/internal/user"
	"github.com/milijuli/sewa/internal/view"
)

// DashboardSourceAdapter は project.Service と donation.Service を view.DashboardSource に適合させるアダプタ。
type DashboardSourceAdapter struct {
	projects *project.Service
	donation *donation.Service
}

// NewDashboardSourceAdapter はDashboardSourceAdapterを生成する。
func NewDashboardSourceAdapter(projects *project.Service, donations *donation.Service) *DashboardSourceAdapter {
	return &DashboardSourceAdapter{projects: projects, donation: donations}
}

// FeaturedProjects は注目プロジェクトを返す。
func (a *DashboardSourceAdapter) FeaturedProjects(ctx context.Context, limit int) []*model.Project {
	return a.projects.FeaturedProjects(ctx, limit)
}

// Stats はサイト全体の集計値を返す。
func (a *DashboardSourceAdapter) Stats(ctx context.Context) model.PlatformStats {
	return a.projects.Stats(ctx)
}

// RecentDonations は直近の寄付を新しい順に返す。
func (a *DashboardSourceAdapter) RecentDonations(ctx context.Context, limit int) []*model.Donation {
	return a.donation.RecentDonations(ctx, limit)
}

// --- compile-time interface checks ---

var _ view.DashboardSource = (*DashboardSourceAdapter)(nil)
var _ ProjectServiceInterface = (*project.Service)(nil)
var _ DonationServiceInterface = (*donation.Service)(nil)
var _ UpdateServiceInterface = (*updates.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ AssistantServiceInterface = (*assistant.Service)(nil)
var _ AuthServiceInterface = (*auth.Service)(nil)
var _ ContentStore = (*content.Store)(nil)

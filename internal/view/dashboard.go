package view

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/milijuli/sewa/internal/model"
)

const (
	defaultFeaturedLimit     = 6
	defaultRecentLimit       = 10
	defaultTopDonorLimit     = 5
	defaultLeaderboardSample = 500
)

// DashboardSource はダッシュボードの各部品を取得する。
// 各メソッドは取得失敗時にログを出して空の値を返す前提で、エラーを返さない。
type DashboardSource interface {
	FeaturedProjects(ctx context.Context, limit int) []*model.Project
	Stats(ctx context.Context) model.PlatformStats
	RecentDonations(ctx context.Context, limit int) []*model.Donation
}

// DashboardOptions は各部品の件数。ゼロ値は既定値を使う。
type DashboardOptions struct {
	FeaturedLimit int
	RecentLimit   int
	TopDonorLimit int
	// LeaderboardSample はランキング集計に使う直近寄付の件数。
	LeaderboardSample int
}

// Stats はサイト全体の集計値と表示用の金額表記。
type Stats struct {
	model.PlatformStats
	TotalRaisedLabel string `json:"total_raised_label"`
}

// Dashboard はトップページの表示値。
type Dashboard struct {
	Featured        []ProjectCard `json:"featured"`
	Stats           Stats         `json:"stats"`
	RecentDonations []DonationRow `json:"recent_donations"`
	TopDonors       []DonorRow    `json:"top_donors"`
}

// NewStats は集計値に金額表記を付加する。
func NewStats(s model.PlatformStats) Stats {
	return Stats{PlatformStats: s, TotalRaisedLabel: FormatNPR(s.TotalRaised)}
}

// BuildDashboard は独立した3つの取得を並行に実行してDashboardを組み立てる。
// 各取得は失敗時に空を返すため、部分的に空のDashboardになることはあってもエラーにはならない。
func BuildDashboard(ctx context.Context, src DashboardSource, opts DashboardOptions) *Dashboard {
	if opts.FeaturedLimit <= 0 {
		opts.FeaturedLimit = defaultFeaturedLimit
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = defaultRecentLimit
	}
	if opts.TopDonorLimit <= 0 {
		opts.TopDonorLimit = defaultTopDonorLimit
	}
	if opts.LeaderboardSample < opts.RecentLimit {
		opts.LeaderboardSample = max(defaultLeaderboardSample, opts.RecentLimit)
	}

	var (
		featured  []*model.Project
		stats     model.PlatformStats
		donations []*model.Donation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		featured = src.FeaturedProjects(gctx, opts.FeaturedLimit)
		return nil
	})
	g.Go(func() error {
		stats = src.Stats(gctx)
		return nil
	})
	g.Go(func() error {
		donations = src.RecentDonations(gctx, opts.LeaderboardSample)
		return nil
	})
	_ = g.Wait()

	recent := donations
	if len(recent) > opts.RecentLimit {
		recent = recent[:opts.RecentLimit]
	}

	return &Dashboard{
		Featured:        ProjectCards(featured),
		Stats:           NewStats(stats),
		RecentDonations: DonationRows(recent),
		TopDonors:       DonorRows(TopDonors(donations, opts.TopDonorLimit)),
	}
}

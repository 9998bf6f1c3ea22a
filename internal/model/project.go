package model

import "time"

// Project は募金キャンペーンを表す。金額はNPRの整数値。
type Project struct {
	ID           string
	Title        string
	Slug         string
	Summary      string
	Description  string
	Category     string
	Location     string
	ImageURL     string
	TargetAmount int64
	RaisedAmount int64
	DonorCount   int
	Status       ProjectStatus
	Featured     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProjectStatus はプロジェクトの募集状態を表す。
type ProjectStatus string

const (
	// ProjectStatusActive は寄付受付中。
	ProjectStatusActive ProjectStatus = "active"
	// ProjectStatusFunded は目標額に到達済み。寄付は引き続き受け付ける。
	ProjectStatusFunded ProjectStatus = "funded"
	// ProjectStatusClosed は受付終了。
	ProjectStatusClosed ProjectStatus = "closed"
)

// AcceptsDonations はプロジェクトが寄付を受け付けるかを返す。
func (s ProjectStatus) AcceptsDonations() bool {
	return s == ProjectStatusActive || s == ProjectStatusFunded
}

// ProjectOrder は一覧の並び順。
type ProjectOrder string

const (
	ProjectOrderNewest     ProjectOrder = "newest"
	ProjectOrderMostFunded ProjectOrder = "most_funded"
	ProjectOrderEndingSoon ProjectOrder = "ending_soon"
	ProjectOrderTitle      ProjectOrder = "title"
)

// ProjectFilter はプロジェクト一覧の絞り込み条件。
// ゼロ値のフィールドは条件に含めない。
type ProjectFilter struct {
	Category string
	Status   ProjectStatus
	Featured *bool
	Query    string
	Order    ProjectOrder
	Limit    int
	Offset   int
}

// PlatformStats はダッシュボード用の集計値。
type PlatformStats struct {
	ProjectCount       int   `json:"project_count"`
	ActiveProjectCount int   `json:"active_project_count"`
	DonationCount      int   `json:"donation_count"`
	DonorCount         int   `json:"donor_count"`
	TotalRaised        int64 `json:"total_raised"`
	InKindCount        int   `json:"in_kind_count"`
}

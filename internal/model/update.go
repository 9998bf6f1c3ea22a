package model

import "time"

// UpdateSource はプロジェクトの活動報告フィード（RSS/Atom）の取得元を表す。
type UpdateSource struct {
	ID                string
	ProjectID         string
	SiteURL           string
	FeedURL           string
	FetchStatus       FetchStatus
	ConsecutiveErrors int
	LastError         string
	ETag              string
	LastModified      string
	LastFetchedAt     *time.Time
	NextFetchAt       time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FetchStatus は取得元のフェッチ状態を表す。
type FetchStatus string

const (
	// FetchStatusActive はアクティブなフェッチ状態。
	FetchStatusActive FetchStatus = "active"
	// FetchStatusStopped は停止されたフェッチ状態。
	FetchStatusStopped FetchStatus = "stopped"
	// FetchStatusError はエラーによるフェッチ停止状態。
	FetchStatusError FetchStatus = "error"
)

// ProjectUpdate はフィードから取り込んだ活動報告1件を表す。
type ProjectUpdate struct {
	ID              string
	ProjectID       string
	SourceID        string
	GuidOrID        string
	Title           string
	Link            string
	Content         string
	Summary         string
	PublishedAt     *time.Time
	IsDateEstimated bool
	ContentHash     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParsedUpdate はフィードをパースして得た保存前の活動報告。
type ParsedUpdate struct {
	GuidOrID    string
	Title       string
	Link        string
	Content     string
	Summary     string
	PublishedAt *time.Time
}

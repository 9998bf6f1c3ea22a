// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/milijuli/sewa/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はIdPから取得した表示名とアバターURLを反映する。
	UpdateProfile(ctx context.Context, id, name, avatarURL string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// identities、sessionsはCASCADE削除され、寄付のuser_idはNULLになる。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProjectRepository はプロジェクトの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// FindBySlug はスラッグでプロジェクトを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Project, error)

	// List はフィルタ条件に一致するプロジェクトを並び順に従って返す。
	List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, error)

	// Create はプロジェクトを作成する。スラッグが既存で挿入されなかった場合はfalseを返す。
	Create(ctx context.Context, project *model.Project) (bool, error)

	// Stats はダッシュボード用の集計値を返す。
	Stats(ctx context.Context) (*model.PlatformStats, error)
}

// DonationRepository は金銭寄付の永続化インターフェース。
type DonationRepository interface {
	// CreateAndApply は寄付を記録し、同一トランザクションでプロジェクトの
	// raised_amount・donor_count・statusを更新する。更新後のプロジェクトを返す。
	// プロジェクトが存在しない場合はnilを返す。
	CreateAndApply(ctx context.Context, donation *model.Donation) (*model.Project, error)

	// ListByProject はプロジェクトの寄付を新しい順に返す。limit<=0は全件。
	ListByProject(ctx context.Context, projectID string, limit int) ([]*model.Donation, error)

	// ListByUser はユーザーの寄付をプロジェクト名付きで新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.DonationWithProject, error)

	// ListRecent は全プロジェクト横断で新しい順に寄付を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.Donation, error)
}

// PhysicalDonationRepository は物品寄付の永続化インターフェース。
type PhysicalDonationRepository interface {
	// Create は物品寄付を作成する。
	Create(ctx context.Context, donation *model.PhysicalDonation) error
	// FindByID は指定IDの物品寄付を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.PhysicalDonation, error)
	// ListByProject はプロジェクトの物品寄付を新しい順に返す。
	ListByProject(ctx context.Context, projectID string) ([]*model.PhysicalDonation, error)
	// ListByUser はユーザーの物品寄付を新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.PhysicalDonation, error)
	// UpdateStatus は状態がfromの場合に限りtoへ更新する。更新できた場合はtrueを返す。
	UpdateStatus(ctx context.Context, id string, from, to model.PhysicalDonationStatus) (bool, error)
}

// UpdateSourceRepository は活動報告フィード取得元の永続化インターフェース。
type UpdateSourceRepository interface {
	// FindByID は指定IDの取得元を返す。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UpdateSource, error)

	// FindByProjectAndFeedURL はプロジェクトとフィードURLで取得元を検索する。見つからない場合はnilを返す。
	FindByProjectAndFeedURL(ctx context.Context, projectID, feedURL string) (*model.UpdateSource, error)

	// Create は取得元を作成する。
	Create(ctx context.Context, source *model.UpdateSource) error

	// ListByProject はプロジェクトの取得元一覧を返す。
	ListByProject(ctx context.Context, projectID string) ([]*model.UpdateSource, error)

	// ListDueForFetch はnext_fetch_at <= now() かつ fetch_status = 'active' の取得元を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForFetch(ctx context.Context) ([]*model.UpdateSource, error)

	// UpdateFetchState はフェッチ状態（status、エラー数、次回時刻、etag等）を更新する。
	UpdateFetchState(ctx context.Context, source *model.UpdateSource) error
}

// ProjectUpdateRepository は活動報告の永続化インターフェース。
// 同一性判定（3段階の優先順位）とCRUD操作を提供する。
type ProjectUpdateRepository interface {
	// FindBySourceAndGUID はsource_idとguid_or_idで検索する。同一性判定の最優先手段。
	FindBySourceAndGUID(ctx context.Context, sourceID, guid string) (*model.ProjectUpdate, error)

	// FindBySourceAndLink はsource_idとlinkで検索する。同一性判定の第2優先手段。
	FindBySourceAndLink(ctx context.Context, sourceID, link string) (*model.ProjectUpdate, error)

	// FindByContentHash はsource_idとcontent_hashで検索する。同一性判定の第3優先手段。
	FindByContentHash(ctx context.Context, sourceID, contentHash string) (*model.ProjectUpdate, error)

	// ListByProject はプロジェクトの活動報告を公開日の新しい順に返す。
	ListByProject(ctx context.Context, projectID string, limit int) ([]*model.ProjectUpdate, error)

	// Create は新規の活動報告を作成する。
	Create(ctx context.Context, update *model.ProjectUpdate) error

	// Update は既存の活動報告を上書き更新する。
	Update(ctx context.Context, update *model.ProjectUpdate) error
}

// GenerationRepository は生成ログの永続化インターフェース。
// PostgreSQLとMongoDBの実装がある。
type GenerationRepository interface {
	// Create は生成ログを1件保存する。
	Create(ctx context.Context, generation *model.Generation) error
	// DeleteOlderThan はbeforeより前の生成ログを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// OutboxRepository は送信扱いメールの永続化インターフェース。
type OutboxRepository interface {
	// Create はメールを1件記録する。
	Create(ctx context.Context, email *model.OutboxEmail) error
	// DeleteOlderThan はbeforeより前の記録を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

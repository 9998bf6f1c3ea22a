package updates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
)

// ContentSanitizer は活動報告本文のサニタイズインターフェース。security.Sanitizerが実装する。
type ContentSanitizer interface {
	Update(raw string) string
	PlainText(raw string) string
}

// maxSummaryRunes は一覧表示用の要約の最大文字数。
const maxSummaryRunes = 280

// Upserter はフィードから取り込んだ活動報告を同一性判定しながら保存する。
type Upserter struct {
	repo      repository.ProjectUpdateRepository
	sanitizer ContentSanitizer
	now       func() time.Time
}

// NewUpserter はUpserterを生成する。
func NewUpserter(repo repository.ProjectUpdateRepository, sanitizer ContentSanitizer) *Upserter {
	return &Upserter{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// Upsert は取得元の活動報告を保存し、挿入数と更新数を返す。
// 同一性判定の優先順位: (source, guid) > (source, link) > content hash
// 最初のエラーで中断し、それまでの件数を返す。
func (u *Upserter) Upsert(ctx context.Context, source *model.UpdateSource, items []model.ParsedUpdate) (inserted, updated int, err error) {
	now := u.now()
	for _, p := range items {
		content := u.sanitizer.Update(p.Content)
		summary := summarize(u.sanitizer.PlainText(firstNonEmpty(p.Summary, p.Content)))
		title := u.sanitizer.PlainText(p.Title)
		hash := contentHash(title, p.PublishedAt, summary)

		existing, err := u.find(ctx, source.ID, p, hash)
		if err != nil {
			return inserted, updated, fmt.Errorf("活動報告の同一性判定に失敗: %w", err)
		}

		if existing != nil {
			existing.GuidOrID = p.GuidOrID
			existing.Title = title
			existing.Link = p.Link
			existing.Content = content
			existing.Summary = summary
			existing.ContentHash = hash
			existing.UpdatedAt = now
			if p.PublishedAt != nil {
				existing.PublishedAt = p.PublishedAt
				existing.IsDateEstimated = false
			}
			if err := u.repo.Update(ctx, existing); err != nil {
				return inserted, updated, fmt.Errorf("活動報告の更新に失敗: %w", err)
			}
			updated++
			continue
		}

		update := &model.ProjectUpdate{
			ID:          uuid.New().String(),
			ProjectID:   source.ProjectID,
			SourceID:    source.ID,
			GuidOrID:    p.GuidOrID,
			Title:       title,
			Link:        p.Link,
			Content:     content,
			Summary:     summary,
			PublishedAt: p.PublishedAt,
			ContentHash: hash,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if update.PublishedAt == nil {
			update.PublishedAt = &now
			update.IsDateEstimated = true
		}
		if err := u.repo.Create(ctx, update); err != nil {
			return inserted, updated, fmt.Errorf("活動報告の挿入に失敗: %w", err)
		}
		inserted++
	}

	slog.InfoContext(ctx, "活動報告を取り込みました",
		slog.String("source_id", source.ID),
		slog.String("project_id", source.ProjectID),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
	)
	return inserted, updated, nil
}

func (u *Upserter) find(ctx context.Context, sourceID string, p model.ParsedUpdate, hash string) (*model.ProjectUpdate, error) {
	if p.GuidOrID != "" {
		found, err := u.repo.FindBySourceAndGUID(ctx, sourceID, p.GuidOrID)
		if err != nil || found != nil {
			return found, err
		}
	}
	if p.Link != "" {
		found, err := u.repo.FindBySourceAndLink(ctx, sourceID, p.Link)
		if err != nil || found != nil {
			return found, err
		}
	}
	return u.repo.FindByContentHash(ctx, sourceID, hash)
}

// contentHash はtitle・公開日時・要約のSHA-256を16進で返す。
func contentHash(title string, publishedAt *time.Time, summary string) string {
	var published string
	if publishedAt != nil {
		published = publishedAt.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(title + "|" + published + "|" + summary))
	return hex.EncodeToString(sum[:])
}

func summarize(text string) string {
	r := []rune(text)
	if len(r) <= maxSummaryRunes {
		return text
	}
	return strings.TrimSpace(string(r[:maxSummaryRunes-1])) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

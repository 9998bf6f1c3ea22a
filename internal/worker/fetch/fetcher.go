package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
)

const userAgent = "milijuli-sewa/1.0 (+project updates)"

// UpdateUpserter は活動報告の保存インターフェース。updates.Upserterが実装する。
type UpdateUpserter interface {
	Upsert(ctx context.Context, source *model.UpdateSource, items []model.ParsedUpdate) (inserted, updated int, err error)
}

// URLChecker は外部URLの静的検証インターフェース。
type URLChecker interface {
	Check(rawURL string) error
}

// Observer はフェッチ結果の計測フック。
type Observer interface {
	ObserveFetch(result string, duration time.Duration)
}

// Config はFetcherの設定。
type Config struct {
	// Interval は成功時の次回フェッチまでの間隔。
	Interval time.Duration
	// MaxBodySize はレスポンスボディの読み込み上限。
	MaxBodySize int64
}

// Fetcher は取得元1件のHTTPフェッチ、パース、保存を行う。
// ETag/Last-Modifiedによる条件付きGETを使い、結果に応じて取得元の状態を更新する。
type Fetcher struct {
	sources  repository.UpdateSourceRepository
	upserter UpdateUpserter
	guard    URLChecker
	client   *http.Client
	logger   *slog.Logger
	observer Observer
	config   Config
	now      func() time.Time
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// clientには接続時のSSRF検証とサイズ制限を行うクライアントを渡す。observerはnil可。
func NewFetcher(
	sources repository.UpdateSourceRepository,
	upserter UpdateUpserter,
	guard URLChecker,
	client *http.Client,
	logger *slog.Logger,
	observer Observer,
	config Config,
) *Fetcher {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Minute
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 5 << 20
	}
	return &Fetcher{
		sources:  sources,
		upserter: upserter,
		guard:    guard,
		client:   client,
		logger:   logger,
		observer: observer,
		config:   config,
		now:      time.Now,
	}
}

// Fetch は取得元をフェッチし、状態を保存する。
// HTTPエラーやパース失敗は取得元の状態として記録し、保存に失敗した場合のみエラーを返す。
func (f *Fetcher) Fetch(ctx context.Context, src *model.UpdateSource) error {
	start := f.now()
	result := f.fetch(ctx, src)
	if f.observer != nil {
		f.observer.ObserveFetch(result, time.Since(start))
	}

	if err := f.sources.UpdateFetchState(ctx, src); err != nil {
		f.logger.Error("取得元の状態更新に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("取得元の状態更新に失敗: %w", err)
	}
	return nil
}

// fetch は1回分のフェッチを行い、srcの状態を更新して結果ラベルを返す。
func (f *Fetcher) fetch(ctx context.Context, src *model.UpdateSource) string {
	now := f.now()
	log := f.logger.With(
		slog.String("source_id", src.ID),
		slog.String("project_id", src.ProjectID),
		slog.String("feed_url", src.FeedURL),
	)

	if err := f.guard.Check(src.FeedURL); err != nil {
		log.Error("URL検証に失敗したため取得元を停止します", slog.String("error", err.Error()))
		ApplyStop(src, "blocked url: "+err.Error(), now)
		return "blocked"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.FeedURL, nil)
	if err != nil {
		ApplyStop(src, "invalid request: "+err.Error(), now)
		return "blocked"
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml;q=0.9, */*;q=0.5")
	if src.ETag != "" {
		req.Header.Set("If-None-Match", src.ETag)
	}
	if src.LastModified != "" {
		req.Header.Set("If-Modified-Since", src.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn("HTTPリクエストに失敗しました", slog.String("error", err.Error()))
		ApplyBackoff(src, "request failed: "+err.Error(), now)
		return "error"
	}
	defer resp.Body.Close()

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
	case FetchResultNotModified:
		log.Info("活動報告フィードは未変更です", slog.Int("http_status", resp.StatusCode))
		ApplySuccess(src, f.config.Interval, now)
		return "not_modified"
	case FetchResultStop:
		log.Warn("取得元を停止します", slog.Int("http_status", resp.StatusCode))
		ApplyStop(src, fmt.Sprintf("HTTP %d", resp.StatusCode), now)
		return "stopped"
	default:
		log.Warn("バックオフを適用します",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", src.ConsecutiveErrors+1),
		)
		ApplyBackoff(src, fmt.Sprintf("HTTP %d", resp.StatusCode), now)
		return "error"
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		log.Warn("レスポンスの読み取りに失敗しました", slog.String("error", err.Error()))
		ApplyBackoff(src, "read failed: "+err.Error(), now)
		return "error"
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		src.ETag = etag
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		src.LastModified = lm
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		log.Warn("フィードのパースに失敗しました", slog.String("error", err.Error()))
		ApplyParseFailure(src, err.Error(), now)
		return "parse_error"
	}
	if feed.Link != "" && src.SiteURL == "" {
		src.SiteURL = feed.Link
	}

	items := convertItems(feed.Items)
	inserted, updated, err := f.upserter.Upsert(ctx, src, items)
	if err != nil {
		log.Error("活動報告の保存に失敗しました", slog.String("error", err.Error()))
		ApplyBackoff(src, "store failed: "+err.Error(), now)
		return "error"
	}

	ApplySuccess(src, f.config.Interval, now)
	log.Info("活動報告フィードを取り込みました",
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_total", len(items)),
		slog.Int("items_inserted", inserted),
		slog.Int("items_updated", updated),
		slog.Float64("duration_ms", float64(time.Since(now).Milliseconds())),
	)
	return "ok"
}

// convertItems はgofeedの項目をParsedUpdateへ変換する。
// 本文がない場合は説明文を使い、リンクがなくGUIDがURLならGUIDをリンクとして使う。
func convertItems(items []*gofeed.Item) []model.ParsedUpdate {
	out := make([]model.ParsedUpdate, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		p := model.ParsedUpdate{
			GuidOrID: it.GUID,
			Title:    it.Title,
			Link:     it.Link,
			Content:  it.Content,
			Summary:  it.Description,
		}
		switch {
		case it.PublishedParsed != nil:
			t := *it.PublishedParsed
			p.PublishedAt = &t
		case it.UpdatedParsed != nil:
			t := *it.UpdatedParsed
			p.PublishedAt = &t
		}
		if p.Content == "" {
			p.Content = it.Description
		}
		if p.Link == "" && (strings.HasPrefix(p.GuidOrID, "https://") || strings.HasPrefix(p.GuidOrID, "http://")) {
			p.Link = p.GuidOrID
		}
		out = append(out, p)
	}
	return out
}

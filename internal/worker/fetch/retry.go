package fetch

import (
	"fmt"
	"time"

	"github.com/milijuli/sewa/internal/model"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop は取得元の停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	initialBackoff = 30 * time.Minute
	maxBackoff     = 12 * time.Hour
	// parseFailureThreshold はパース失敗が続いた取得元をerror状態にする閾値。
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 304:
		return FetchResultNotModified
	case statusCode == 404, statusCode == 410, statusCode == 401, statusCode == 403:
		return FetchResultStop
	case statusCode == 429, statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に応じた待ち時間を返す。30分から倍々で最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplyStop は取得元のフェッチを停止する。
func ApplyStop(src *model.UpdateSource, reason string, now time.Time) {
	src.FetchStatus = model.FetchStatusStopped
	src.LastError = reason
	src.UpdatedAt = now
}

// ApplyBackoff は連続エラー回数を増やし、指数バックオフでnext_fetch_atを設定する。
func ApplyBackoff(src *model.UpdateSource, reason string, now time.Time) {
	src.ConsecutiveErrors++
	src.LastError = reason
	src.NextFetchAt = now.Add(CalculateBackoff(src.ConsecutiveErrors - 1))
	src.UpdatedAt = now
}

// ApplySuccess はエラー状態をリセットし、interval後に次回フェッチを設定する。
func ApplySuccess(src *model.UpdateSource, interval time.Duration, now time.Time) {
	src.ConsecutiveErrors = 0
	src.LastError = ""
	src.LastFetchedAt = &now
	src.NextFetchAt = now.Add(interval)
	src.UpdatedAt = now
}

// ApplyParseFailure はパース失敗を記録する。閾値に達した取得元はerror状態にして停止する。
// 閾値未満の場合はバックオフで再試行する。
func ApplyParseFailure(src *model.UpdateSource, reason string, now time.Time) {
	src.ConsecutiveErrors++
	src.UpdatedAt = now
	if src.ConsecutiveErrors >= parseFailureThreshold {
		src.FetchStatus = model.FetchStatusError
		src.LastError = fmt.Sprintf("parse failed %d times in a row, fetching stopped: %s", src.ConsecutiveErrors, reason)
		return
	}
	src.LastError = fmt.Sprintf("parse failed (%d in a row): %s", src.ConsecutiveErrors, reason)
	src.NextFetchAt = now.Add(CalculateBackoff(src.ConsecutiveErrors - 1))
}

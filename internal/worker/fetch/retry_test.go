package fetch

import (
	"strings"
	"testing"
	"time"

	"github.com/milijuli/sewa/internal/model"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FetchResult
	}{
		{200, FetchResultOK},
		{304, FetchResultNotModified},
		{401, FetchResultStop},
		{403, FetchResultStop},
		{404, FetchResultStop},
		{410, FetchResultStop},
		{429, FetchResultBackoff},
		{500, FetchResultBackoff},
		{502, FetchResultBackoff},
		{503, FetchResultBackoff},
		{301, FetchResultUnknown},
		{418, FetchResultUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name   string
		errors int
		want   time.Duration
	}{
		{"初回は30分", 0, 30 * time.Minute},
		{"1回目は1時間", 1, time.Hour},
		{"2回目は2時間", 2, 2 * time.Hour},
		{"4回目は8時間", 4, 8 * time.Hour},
		{"5回目で上限の12時間", 5, 12 * time.Hour},
		{"それ以降も12時間", 20, 12 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateBackoff(tt.errors); got != tt.want {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.errors, got, tt.want)
			}
		})
	}
}

func TestApplyStop(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &model.UpdateSource{FetchStatus: model.FetchStatusActive}

	ApplyStop(src, "HTTP 404", now)

	if src.FetchStatus != model.FetchStatusStopped {
		t.Errorf("FetchStatus = %q, want stopped", src.FetchStatus)
	}
	if src.LastError != "HTTP 404" {
		t.Errorf("LastError = %q, want %q", src.LastError, "HTTP 404")
	}
}

func TestApplyBackoff_IncrementsAndSchedules(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &model.UpdateSource{FetchStatus: model.FetchStatusActive, ConsecutiveErrors: 1}

	ApplyBackoff(src, "HTTP 503", now)

	if src.ConsecutiveErrors != 2 {
		t.Errorf("ConsecutiveErrors = %d, want 2", src.ConsecutiveErrors)
	}
	if want := now.Add(time.Hour); !src.NextFetchAt.Equal(want) {
		t.Errorf("NextFetchAt = %v, want %v", src.NextFetchAt, want)
	}
	if src.FetchStatus != model.FetchStatusActive {
		t.Errorf("バックオフでは状態を変えないべき, got %q", src.FetchStatus)
	}
}

func TestApplySuccess_ResetsErrors(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &model.UpdateSource{ConsecutiveErrors: 3, LastError: "HTTP 500"}

	ApplySuccess(src, 30*time.Minute, now)

	if src.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", src.ConsecutiveErrors)
	}
	if src.LastError != "" {
		t.Errorf("LastError = %q, want empty", src.LastError)
	}
	if src.LastFetchedAt == nil || !src.LastFetchedAt.Equal(now) {
		t.Errorf("LastFetchedAt = %v, want %v", src.LastFetchedAt, now)
	}
	if want := now.Add(30 * time.Minute); !src.NextFetchAt.Equal(want) {
		t.Errorf("NextFetchAt = %v, want %v", src.NextFetchAt, want)
	}
}

func TestApplyParseFailure_BelowThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &model.UpdateSource{FetchStatus: model.FetchStatusActive}

	ApplyParseFailure(src, "unexpected EOF", now)

	if src.FetchStatus != model.FetchStatusActive {
		t.Errorf("閾値未満では状態を変えないべき, got %q", src.FetchStatus)
	}
	if src.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", src.ConsecutiveErrors)
	}
	if want := now.Add(30 * time.Minute); !src.NextFetchAt.Equal(want) {
		t.Errorf("NextFetchAt = %v, want %v", src.NextFetchAt, want)
	}
}

func TestApplyParseFailure_ReachesThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &model.UpdateSource{FetchStatus: model.FetchStatusActive, ConsecutiveErrors: parseFailureThreshold - 1}

	ApplyParseFailure(src, "unexpected EOF", now)

	if src.FetchStatus != model.FetchStatusError {
		t.Errorf("FetchStatus = %q, want error", src.FetchStatus)
	}
	if !strings.Contains(src.LastError, "stopped") {
		t.Errorf("LastError = %q, should mention stopped", src.LastError)
	}
}

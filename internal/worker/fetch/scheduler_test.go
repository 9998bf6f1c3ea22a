package fetch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/milijuli/sewa/internal/model"
)

// mockSourceRepo はUpdateSourceRepositoryのテスト用モック。
type mockSourceRepo struct {
	mu                   sync.Mutex
	listDueForFetchFunc  func(ctx context.Context) ([]*model.UpdateSource, error)
	updateFetchStateFunc func(ctx context.Context, src *model.UpdateSource) error
	saved                []*model.UpdateSource
}

func (m *mockSourceRepo) FindByID(_ context.Context, _ string) (*model.UpdateSource, error) {
	return nil, nil
}

func (m *mockSourceRepo) FindByProjectAndFeedURL(_ context.Context, _, _ string) (*model.UpdateSource, error) {
	return nil, nil
}

func (m *mockSourceRepo) Create(_ context.Context, _ *model.UpdateSource) error {
	return nil
}

func (m *mockSourceRepo) ListByProject(_ context.Context, _ string) ([]*model.UpdateSource, error) {
	return nil, nil
}

func (m *mockSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.UpdateSource, error) {
	if m.listDueForFetchFunc != nil {
		return m.listDueForFetchFunc(ctx)
	}
	return nil, nil
}

func (m *mockSourceRepo) UpdateFetchState(ctx context.Context, src *model.UpdateSource) error {
	m.mu.Lock()
	copied := *src
	m.saved = append(m.saved, &copied)
	m.mu.Unlock()
	if m.updateFetchStateFunc != nil {
		return m.updateFetchStateFunc(ctx, src)
	}
	return nil
}

func (m *mockSourceRepo) lastSaved(t *testing.T) *model.UpdateSource {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		t.Fatal("UpdateFetchState が呼ばれていない")
	}
	return m.saved[len(m.saved)-1]
}

// mockFetcher はSourceFetcherのテスト用モック。
type mockFetcher struct {
	fetchFunc func(ctx context.Context, src *model.UpdateSource) error
}

func (m *mockFetcher) Fetch(ctx context.Context, src *model.UpdateSource) error {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, src)
	}
	return nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func dueSources(n int) []*model.UpdateSource {
	out := make([]*model.UpdateSource, n)
	for i := range out {
		out[i] = &model.UpdateSource{
			ID:          "src-" + string(rune('a'+i)),
			FeedURL:     "https://example.org/feed.xml",
			FetchStatus: model.FetchStatusActive,
		}
	}
	return out
}

func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(&mockSourceRepo{}, &mockFetcher{}, newTestLogger(&buf), 0)
	if s.maxConcurrency != 10 {
		t.Errorf("maxConcurrency = %d, want 10", s.maxConcurrency)
	}

	s = NewScheduler(&mockSourceRepo{}, &mockFetcher{}, newTestLogger(&buf), 3)
	if s.maxConcurrency != 3 {
		t.Errorf("maxConcurrency = %d, want 3", s.maxConcurrency)
	}
}

func TestScheduler_RunOnce_FetchesAllDueSources(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.UpdateSource, error) {
			return dueSources(5), nil
		},
	}

	var mu sync.Mutex
	fetched := map[string]bool{}
	fetcher := &mockFetcher{
		fetchFunc: func(_ context.Context, src *model.UpdateSource) error {
			mu.Lock()
			fetched[src.ID] = true
			mu.Unlock()
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, newTestLogger(&buf), 2)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(fetched) != 5 {
		t.Errorf("fetched %d sources, want 5", len(fetched))
	}
}

func TestScheduler_RunOnce_RespectsConcurrencyLimit(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.UpdateSource, error) {
			return dueSources(12), nil
		},
	}

	var current, peak int32
	fetcher := &mockFetcher{
		fetchFunc: func(_ context.Context, _ *model.UpdateSource) error {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, newTestLogger(&buf), 3)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if got := atomic.LoadInt32(&peak); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
}

func TestScheduler_RunOnce_ListErrorIsReturned(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.UpdateSource, error) {
			return nil, errors.New("connection refused")
		},
	}

	s := NewScheduler(repo, &mockFetcher{}, newTestLogger(&buf), 2)
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestScheduler_RunOnce_FetchErrorIsLoggedAndOthersContinue(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.UpdateSource, error) {
			return dueSources(3), nil
		},
	}

	var count int32
	fetcher := &mockFetcher{
		fetchFunc: func(_ context.Context, src *model.UpdateSource) error {
			atomic.AddInt32(&count, 1)
			if src.ID == "src-a" {
				return errors.New("db down")
			}
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, newTestLogger(&buf), 1)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if count != 3 {
		t.Errorf("fetch count = %d, want 3", count)
	}
	if !strings.Contains(buf.String(), "db down") {
		t.Errorf("ログにエラー内容が含まれるべき: %s", buf.String())
	}
}

func TestScheduler_Start_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	var runs int32
	repo := &mockSourceRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.UpdateSource, error) {
			atomic.AddInt32(&runs, 1)
			return dueSources(2), nil
		},
	}

	s := NewScheduler(repo, &mockFetcher{}, newTestLogger(&buf), 2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に戻らない")
	}
	if got := atomic.LoadInt32(&runs); got < 2 {
		t.Errorf("runs = %d, want >= 2 (起動直後と定期実行)", got)
	}
}

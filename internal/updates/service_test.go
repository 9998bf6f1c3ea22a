package updates

import (
	"context"
	"errors"
	"testing"

	"github.com/milijuli/sewa/internal/model"
)

type stubProjects map[string]*model.Project

func (s stubProjects) FindByID(_ context.Context, id string) (*model.Project, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	return s[id], nil
}

type stubDetector struct {
	feedURL string
	err     error
}

func (s stubDetector) Detect(context.Context, string) (string, error) { return s.feedURL, s.err }

type mockSourceRepo struct {
	existing *model.UpdateSource
	created  []*model.UpdateSource
}

func (m *mockSourceRepo) FindByID(context.Context, string) (*model.UpdateSource, error) {
	return nil, nil
}
func (m *mockSourceRepo) FindByProjectAndFeedURL(context.Context, string, string) (*model.UpdateSource, error) {
	return m.existing, nil
}
func (m *mockSourceRepo) Create(_ context.Context, s *model.UpdateSource) error {
	m.created = append(m.created, s)
	return nil
}
func (m *mockSourceRepo) ListByProject(context.Context, string) ([]*model.UpdateSource, error) {
	return nil, nil
}
func (m *mockSourceRepo) ListDueForFetch(context.Context) ([]*model.UpdateSource, error) {
	return nil, nil
}
func (m *mockSourceRepo) UpdateFetchState(context.Context, *model.UpdateSource) error { return nil }

var projects = stubProjects{"p-1": {ID: "p-1", Title: "Clean water"}}

func TestRegisterSource_Success(t *testing.T) {
	sources := &mockSourceRepo{}
	svc := NewService(projects, sources, &memUpdateRepo{}, stubDetector{feedURL: "https://ngo.example.org/feed.xml"})

	src, err := svc.RegisterSource(context.Background(), "p-1", "https://ngo.example.org/blog/2026")
	if err != nil {
		t.Fatalf("RegisterSource() error = %v", err)
	}
	if len(sources.created) != 1 {
		t.Fatalf("created = %d, want 1", len(sources.created))
	}
	if src.FeedURL != "https://ngo.example.org/feed.xml" {
		t.Errorf("FeedURL = %q", src.FeedURL)
	}
	if src.SiteURL != "https://ngo.example.org" {
		t.Errorf("SiteURL = %q, want %q", src.SiteURL, "https://ngo.example.org")
	}
	if src.FetchStatus != model.FetchStatusActive || src.NextFetchAt.IsZero() {
		t.Errorf("source should be due immediately: %+v", src)
	}
}

func TestRegisterSource_Errors(t *testing.T) {
	detectErr := model.NewFeedNotDetectedError("https://x.example")
	tests := []struct {
		name      string
		projectID string
		detector  stubDetector
		existing  *model.UpdateSource
		wantCode  string
	}{
		{"プロジェクトなし", "missing", stubDetector{feedURL: "f"}, nil, model.ErrCodeProjectNotFound},
		{"プロジェクト取得失敗", "broken", stubDetector{feedURL: "f"}, nil, ""},
		{"フィード未検出", "p-1", stubDetector{err: detectErr}, nil, model.ErrCodeFeedNotDetected},
		{"重複登録", "p-1", stubDetector{feedURL: "f"}, &model.UpdateSource{ID: "s"}, model.ErrCodeDuplicateUpdateSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := &mockSourceRepo{existing: tt.existing}
			svc := NewService(projects, sources, &memUpdateRepo{}, tt.detector)

			_, err := svc.RegisterSource(context.Background(), tt.projectID, "https://x.example")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := apiCode(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (err=%v)", got, tt.wantCode, err)
			}
			if len(sources.created) != 0 {
				t.Error("source should not be created on error")
			}
		})
	}
}

func TestListByProject(t *testing.T) {
	repo := &memUpdateRepo{items: []*model.ProjectUpdate{
		{ID: "u1", ProjectID: "p-1"},
		{ID: "u2", ProjectID: "p-2"},
	}}
	svc := NewService(projects, &mockSourceRepo{}, repo, stubDetector{})

	if got := svc.ListByProject(context.Background(), "p-1", 0); len(got) != 1 || got[0].ID != "u1" {
		t.Errorf("ListByProject() = %+v", got)
	}
	if got := svc.ListByProject(context.Background(), "none", 10); got == nil || len(got) != 0 {
		t.Errorf("ListByProject() = %v, want empty non-nil", got)
	}

	repo.listErr = errors.New("db down")
	if got := svc.ListByProject(context.Background(), "p-1", 10); got == nil || len(got) != 0 {
		t.Errorf("ListByProject() on failure = %v, want empty non-nil", got)
	}
}

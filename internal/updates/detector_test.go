package updates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/security"
)

// allowAll はhttptestサーバー（ループバック）へのアクセスを許可するテスト用のURLChecker。
type allowAll struct{ blocked map[string]bool }

func (a allowAll) Check(rawURL string) error {
	if a.blocked[rawURL] {
		return fmt.Errorf("%w: %s", security.ErrBlockedURL, rawURL)
	}
	return nil
}

func newTestDetector() *Detector {
	return NewDetector(allowAll{}, http.DefaultClient, 1<<20)
}

func apiCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func TestLooksLikeFeed(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		body      string
		want      bool
	}{
		{"RSS Content-Type", "application/rss+xml", "", true},
		{"Atom Content-Type", "application/atom+xml", "", true},
		{"XMLでrssルート", "application/xml", `<?xml version="1.0"?><rss version="2.0">`, true},
		{"XMLでRDF", "text/xml", `<rdf:RDF xmlns:rdf="x">`, true},
		{"XMLでAtom", "text/xml", `<feed xmlns="http://www.w3.org/2005/Atom">`, true},
		{"XMLで名前空間なしのfeed", "text/xml", `<feed>`, false},
		{"XMLだがsitemap", "application/xml", `<urlset>`, false},
		{"HTML", "text/html", `<rss>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeFeed(tt.mediaType, []byte(tt.body)); got != tt.want {
				t.Errorf("looksLikeFeed(%q) = %v, want %v", tt.mediaType, got, tt.want)
			}
		})
	}
}

func TestFeedLinks_ResolvesAndFilters(t *testing.T) {
	base, _ := url.Parse("https://school.example.org/news/")
	body := []byte(`<!doctype html><html><head>
		<link rel="stylesheet" href="/style.css">
		<link rel="alternate" type="application/rss+xml" href="feed.xml">
		<link rel="Alternate" type="application/atom+xml" href="https://school.example.org/atom.xml">
		<link rel="alternate" type="text/html" hreflang="ne" href="/ne/">
		<link rel="alternate" type="application/rss+xml" href="">
	</head><body><link rel="alternate" type="application/rss+xml" href="/in-body.xml"></body></html>`)

	got := feedLinks(body, base)

	want := []candidate{
		{URL: "https://school.example.org/news/feed.xml", Kind: kindRSS},
		{URL: "https://school.example.org/atom.xml", Kind: kindAtom},
	}
	if len(got) != len(want) {
		t.Fatalf("feedLinks() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("feedLinks()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSelectBest(t *testing.T) {
	cands := []candidate{
		{URL: "https://feeds.other.example/rss", Kind: kindRSS},
		{URL: "https://feeds.other.example/atom", Kind: kindAtom},
		{URL: "https://ngo.example.org/rss", Kind: kindRSS},
		{URL: "https://ngo.example.org/atom", Kind: kindAtom},
		{URL: "https://ngo.example.org/atom2", Kind: kindAtom},
	}
	if got := selectBest(cands, "ngo.example.org"); got == nil || got.URL != "https://ngo.example.org/atom" {
		t.Errorf("selectBest() = %+v, want same-host atom", got)
	}
	if got := selectBest(cands[:2], "ngo.example.org"); got == nil || got.URL != "https://feeds.other.example/atom" {
		t.Errorf("selectBest() = %+v, want atom", got)
	}
	if got := selectBest(nil, "ngo.example.org"); got != nil {
		t.Errorf("selectBest(nil) = %+v, want nil", got)
	}
}

func TestDetect_DirectFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		fmt.Fprint(w, `<rss version="2.0"><channel></channel></rss>`)
	}))
	defer ts.Close()

	got, err := newTestDetector().Detect(context.Background(), ts.URL+"/feed")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != ts.URL+"/feed" {
		t.Errorf("Detect() = %q, want %q", got, ts.URL+"/feed")
	}
}

func TestDetect_HTMLWithFeedLink(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><link rel="alternate" type="application/atom+xml" href="/updates.atom"></head><body></body></html>`)
	}))
	defer ts.Close()

	got, err := newTestDetector().Detect(context.Background(), ts.URL+"/blog")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != ts.URL+"/updates.atom" {
		t.Errorf("Detect() = %q, want %q", got, ts.URL+"/updates.atom")
	}
}

func TestDetect_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "hello")
		case "/nofeed":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>x</title></head></html>`)
		case "/redirect-internal":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><link rel="alternate" type="application/rss+xml" href="http://169.254.169.254/feed"></head></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	guard := allowAll{blocked: map[string]bool{
		"http://10.0.0.1/feed":        true,
		"http://169.254.169.254/feed":    true,
	}}
	d := NewDetector(guard, http.DefaultClient, 1<<20)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空URL", "  ", model.ErrCodeInvalidURL},
		{"内部アドレス", "http://10.0.0.1/feed", model.ErrCodeSSRFBlocked},
		{"HTTP 404", ts.URL + "/missing", model.ErrCodeFetchFailed},
		{"HTMLでもフィードでもない", ts.URL + "/plain", model.ErrCodeFeedNotDetected},
		{"フィードリンクなし", ts.URL + "/nofeed", model.ErrCodeFeedNotDetected},
		{"リンク先が内部アドレス", ts.URL + "/redirect-internal", model.ErrCodeSSRFBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Detect(context.Background(), tt.input)
			if got := apiCode(err); got != tt.want {
				t.Errorf("Detect(%q) code = %q, want %q (err=%v)", tt.input, got, tt.want, err)
			}
		})
	}
}

// Package updates はプロジェクトの活動報告フィードの登録・取り込み・一覧を提供する。
package updates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/security"
)

const userAgent = "milijuli-sewa/1.0 (+project updates)"

// feedKind はフィードの種類（RSS/Atom）を表す。
type feedKind string

const (
	kindRSS  feedKind = "rss"
	kindAtom feedKind = "atom"
)

// candidate はHTMLから検出されたフィードリンク。
type candidate struct {
	URL  string
	Kind feedKind
}

// URLChecker は外部URLの静的検証インターフェース。security.URLGuardが実装する。
type URLChecker interface {
	Check(rawURL string) error
}

// Detector は入力URLがフィードそのものか、フィードへのリンクを持つHTMLかを判定する。
type Detector struct {
	guard   URLChecker
	client  *http.Client
	maxBody int64
}

// NewDetector はDetectorを生成する。clientは接続時のSSRF検証を行うクライアントを渡す。
func NewDetector(guard URLChecker, client *http.Client, maxBody int64) *Detector {
	return &Detector{guard: guard, client: client, maxBody: maxBody}
}

// Detect は入力URLからフィードURLを特定する。
// フィード直リンクの場合はそのまま返し、HTMLの場合は<head>内のalternateリンクから選ぶ。
func (d *Detector) Detect(ctx context.Context, inputURL string) (string, error) {
	inputURL = strings.TrimSpace(inputURL)
	if inputURL == "" {
		return "", model.NewInvalidURLError("empty URL")
	}
	if err := d.guard.Check(inputURL); err != nil {
		return "", guardError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml;q=0.9, text/html;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewFetchFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody))
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}

	mediaType := mediaTypeOf(resp.Header.Get("Content-Type"))
	if looksLikeFeed(mediaType, body) {
		return inputURL, nil
	}
	if !strings.Contains(mediaType, "html") {
		return "", model.NewFeedNotDetectedError(inputURL)
	}

	// リダイレクト後のURLを相対リンクの基準にする
	base := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	best := selectBest(feedLinks(body, base), base.Hostname())
	if best == nil {
		return "", model.NewFeedNotDetectedError(inputURL)
	}
	if err := d.guard.Check(best.URL); err != nil {
		return "", guardError(err)
	}
	return best.URL, nil
}

func guardError(err error) error {
	if errors.Is(err, security.ErrBlockedURL) {
		return model.NewSSRFBlockedError()
	}
	return model.NewInvalidURLError(err.Error())
}

func mediaTypeOf(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// looksLikeFeed はContent-Typeと本文先頭からRSS/Atomかを判定する。
// 汎用XMLは先頭4KBにルート要素があるかで判定する。
func looksLikeFeed(mediaType string, body []byte) bool {
	switch mediaType {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml":
	default:
		return false
	}
	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	head = bytes.ToLower(head)
	switch {
	case bytes.Contains(head, []byte("<rss")), bytes.Contains(head, []byte("<rdf:rdf")):
		return true
	case bytes.Contains(head, []byte("<feed")) && bytes.Contains(head, []byte("http://www.w3.org/2005/atom")):
		return true
	}
	return false
}

// feedLinks は<head>内の<link rel="alternate">からRSS/Atomリンクを文書順に返す。
// 相対URLはbaseで解決する。
func feedLinks(body []byte, base *url.URL) []candidate {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	head := findElement(doc, atom.Head)
	if head == nil {
		return nil
	}

	var out []candidate
	for n := head.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != html.ElementNode || n.DataAtom != atom.Link {
			continue
		}
		if !hasToken(attr(n, "rel"), "alternate") {
			continue
		}
		var kind feedKind
		switch strings.ToLower(attr(n, "type")) {
		case "application/rss+xml":
			kind = kindRSS
		case "application/atom+xml":
			kind = kindAtom
		default:
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(attr(n, "href")))
		if err != nil || ref.String() == "" {
			continue
		}
		out = append(out, candidate{URL: base.ResolveReference(ref).String(), Kind: kind})
	}
	return out
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(list)) {
		if f == token {
			return true
		}
	}
	return false
}

// selectBest は同一ホスト、Atom、文書順の優先度で候補を1つ選ぶ。
func selectBest(cands []candidate, host string) *candidate {
	var best *candidate
	bestScore := -1
	for i := range cands {
		score := 0
		if u, err := url.Parse(cands[i].URL); err == nil && strings.EqualFold(u.Hostname(), host) {
			score += 2
		}
		if cands[i].Kind == kindAtom {
			score++
		}
		if score > bestScore {
			best, bestScore = &cands[i], score
		}
	}
	return best
}

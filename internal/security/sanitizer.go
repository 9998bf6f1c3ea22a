// Package security はHTMLのサニタイズと外部URLへのアクセス制限（SSRF防止）を提供する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は用途別のbluemondayポリシーを保持する。生成後は読み取り専用でスレッドセーフ。
type Sanitizer struct {
	description *bluemonday.Policy
	update      *bluemonday.Policy
	strict      *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		description: descriptionPolicy(),
		update:      updatePolicy(),
		strict:      bluemonday.StrictPolicy(),
	}
}

// baseTextPolicy は段落・リスト・強調・リンクのみ許可する共通ポリシー。
// URLはhttpsとmailtoの絶対URLのみ。リンクにはtarget="_blank"とrel="noopener noreferrer"を付与する。
func baseTextPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "blockquote", "strong", "em")
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("mailto")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// descriptionPolicy はプロジェクト説明文用。見出しと画像を追加で許可する。
func descriptionPolicy() *bluemonday.Policy {
	p := baseTextPolicy()
	p.AllowElements("h2", "h3", "h4")
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
}

// updatePolicy は外部フィードから取り込む活動報告用。コード片と画像を追加で許可する。
func updatePolicy() *bluemonday.Policy {
	p := baseTextPolicy()
	p.AllowElements("pre", "code")
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
}

// Description はプロジェクト説明文のHTMLをサニタイズする。
func (s *Sanitizer) Description(raw string) string {
	return strings.TrimSpace(s.description.Sanitize(raw))
}

// Update は外部フィードの活動報告本文をサニタイズする。
func (s *Sanitizer) Update(raw string) string {
	return strings.TrimSpace(s.update.Sanitize(raw))
}

// PlainText は全てのタグを除去し、空白を1つにまとめたプレーンテキストを返す。
// 一覧表示の要約やメール本文に埋め込む文字列に使う。
func (s *Sanitizer) PlainText(raw string) string {
	text := html.UnescapeString(s.strict.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

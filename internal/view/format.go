// Package view は画面表示用の派生値（達成率、寄付者ランキング、金額表記）を組み立てる。
// 入力は取得済みのデータのみで、ストアへのアクセスは行わない。
package view

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatNPR は金額を "NPR 1,234,567" 形式で返す。
func FormatNPR(amount int64) string {
	return amountPrinter.Sprintf("NPR %d", amount)
}

// CategoryLabel はカテゴリのスラッグ（"clean_water" など）を表示用の見出しに変換する。
// cases.Caserは状態を持つためゴルーチン間で共有せず、呼び出しごとに生成する。
func CategoryLabel(category string) string {
	c := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(category))
	if c == "" {
		return ""
	}
	return cases.Title(language.English).String(c)
}

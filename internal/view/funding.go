package view

import "math"

// FundingPercent は目標額に対する調達額の割合（%）を返す。
// 結果は[0, 100]に収め、小数第1位で切り捨てる。目標額が0以下の場合は0。
func FundingPercent(raised, target int64) float64 {
	if target <= 0 || raised <= 0 {
		return 0
	}
	p := float64(raised) * 100 / float64(target)
	if p >= 100 {
		return 100
	}
	return math.Floor(p*10) / 10
}

// Remaining は目標額までの残額を返す。到達済みの場合は0。
func Remaining(raised, target int64) int64 {
	if raised >= target {
		return 0
	}
	return target - raised
}

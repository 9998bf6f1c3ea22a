package view

import (
	"sort"
	"strings"

	"github.com/milijuli/sewa/internal/model"
)

// AnonymousDonor は匿名寄付をまとめる際の表示名。
const AnonymousDonor = "Anonymous"

const anonymousKey = "anonymous"

// DonorTotals は寄付を寄付者ごとに集計し、合計額の降順（同額は名前の昇順）で返す。
// 寄付者はユーザーID、なければメールアドレスで識別する。
// 匿名寄付と識別子のない寄付は "Anonymous" の1行にまとめる。
// 入力が空でも空のスライス（nilではない）を返す。
func DonorTotals(donations []*model.Donation) []model.DonorTotal {
	index := make(map[string]int)
	totals := make([]model.DonorTotal, 0)

	for _, d := range donations {
		if d == nil {
			continue
		}
		key, name := donorIdentity(d)
		i, ok := index[key]
		if !ok {
			i = len(totals)
			index[key] = i
			totals = append(totals, model.DonorTotal{DonorKey: key, DonorName: name})
		}
		if totals[i].DonorName == "" {
			totals[i].DonorName = name
		}
		totals[i].TotalAmount += d.Amount
		totals[i].GiftCount++
	}

	for i := range totals {
		if totals[i].DonorName == "" {
			totals[i].DonorName = AnonymousDonor
		}
	}

	sort.SliceStable(totals, func(a, b int) bool {
		if totals[a].TotalAmount != totals[b].TotalAmount {
			return totals[a].TotalAmount > totals[b].TotalAmount
		}
		na, nb := strings.ToLower(totals[a].DonorName), strings.ToLower(totals[b].DonorName)
		if na != nb {
			return na < nb
		}
		return totals[a].DonorKey < totals[b].DonorKey
	})
	return totals
}

// TopDonors はDonorTotalsの先頭n件を返す。n<=0の場合は全件。
func TopDonors(donations []*model.Donation, n int) []model.DonorTotal {
	totals := DonorTotals(donations)
	if n > 0 && len(totals) > n {
		totals = totals[:n]
	}
	return totals
}

func donorIdentity(d *model.Donation) (key, name string) {
	if d.Anonymous {
		return anonymousKey, AnonymousDonor
	}
	name = strings.TrimSpace(d.DonorName)
	switch {
	case d.UserID != "":
		return "user:" + d.UserID, name
	case d.DonorEmail != "":
		return "email:" + strings.ToLower(strings.TrimSpace(d.DonorEmail)), name
	default:
		return anonymousKey, AnonymousDonor
	}
}

// DisplayName は寄付一覧に表示する寄付者名を返す。
func DisplayName(d *model.Donation) string {
	if d.Anonymous || strings.TrimSpace(d.DonorName) == "" {
		return AnonymousDonor
	}
	return strings.TrimSpace(d.DonorName)
}

package view

import (
	"time"

	"github.com/milijuli/sewa/internal/model"
)

// ProjectCard は一覧・ダッシュボードに表示するプロジェクト1件分の表示値。
type ProjectCard struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Slug           string  `json:"slug"`
	Summary        string  `json:"summary"`
	Category       string  `json:"category"`
	CategoryLabel  string  `json:"category_label"`
	Location       string  `json:"location"`
	ImageURL       string  `json:"image_url"`
	Status         string  `json:"status"`
	Featured       bool    `json:"featured"`
	TargetAmount   int64   `json:"target_amount"`
	RaisedAmount   int64   `json:"raised_amount"`
	Remaining      int64   `json:"remaining"`
	TargetLabel    string  `json:"target_label"`
	RaisedLabel    string  `json:"raised_label"`
	FundingPercent float64 `json:"funding_percent"`
	DonorCount     int     `json:"donor_count"`
}

// NewProjectCard はProjectから表示値を組み立てる。
func NewProjectCard(p *model.Project) ProjectCard {
	return ProjectCard{
		ID:             p.ID,
		Title:          p.Title,
		Slug:           p.Slug,
		Summary:        p.Summary,
		Category:       p.Category,
		CategoryLabel:  CategoryLabel(p.Category),
		Location:       p.Location,
		ImageURL:       p.ImageURL,
		Status:         string(p.Status),
		Featured:       p.Featured,
		TargetAmount:   p.TargetAmount,
		RaisedAmount:   p.RaisedAmount,
		Remaining:      Remaining(p.RaisedAmount, p.TargetAmount),
		TargetLabel:    FormatNPR(p.TargetAmount),
		RaisedLabel:    FormatNPR(p.RaisedAmount),
		FundingPercent: FundingPercent(p.RaisedAmount, p.TargetAmount),
		DonorCount:     p.DonorCount,
	}
}

// ProjectCards はプロジェクト一覧を表示値に変換する。空の入力には空のスライスを返す。
func ProjectCards(projects []*model.Project) []ProjectCard {
	cards := make([]ProjectCard, 0, len(projects))
	for _, p := range projects {
		if p == nil {
			continue
		}
		cards = append(cards, NewProjectCard(p))
	}
	return cards
}

// DonationRow は寄付一覧の1行。匿名寄付ではメールアドレスとユーザーIDを含めない。
type DonationRow struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	DonorName   string    `json:"donor_name"`
	Amount      int64     `json:"amount"`
	AmountLabel string    `json:"amount_label"`
	Message     string    `json:"message,omitempty"`
	Country     string    `json:"country,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DonationRows は寄付一覧を表示行に変換する。
func DonationRows(donations []*model.Donation) []DonationRow {
	rows := make([]DonationRow, 0, len(donations))
	for _, d := range donations {
		if d == nil {
			continue
		}
		rows = append(rows, DonationRow{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			DonorName:   DisplayName(d),
			Amount:      d.Amount,
			AmountLabel: FormatNPR(d.Amount),
			Message:     d.Message,
			Country:     d.Country,
			CreatedAt:   d.CreatedAt,
		})
	}
	return rows
}

// DonorRow はランキングの1行。
type DonorRow struct {
	Rank        int    `json:"rank"`
	DonorName   string `json:"donor_name"`
	TotalAmount int64  `json:"total_amount"`
	TotalLabel  string `json:"total_label"`
	GiftCount   int    `json:"gift_count"`
}

// DonorRows は集計済みの寄付者合計をランキング行に変換する。
// 寄付者キー（ユーザーIDやメール）は表示に含めない。
func DonorRows(totals []model.DonorTotal) []DonorRow {
	rows := make([]DonorRow, 0, len(totals))
	for i, t := range totals {
		rows = append(rows, DonorRow{
			Rank:        i + 1,
			DonorName:   t.DonorName,
			TotalAmount: t.TotalAmount,
			TotalLabel:  FormatNPR(t.TotalAmount),
			GiftCount:   t.GiftCount,
		})
	}
	return rows
}

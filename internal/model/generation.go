package model

import "time"

// GenerationKind は生成テキストの種類を表す。
type GenerationKind string

const (
	GenerationThankYouEmail GenerationKind = "thank_you_email"
	GenerationProjectSEO    GenerationKind = "project_seo"
	GenerationCampaignStory GenerationKind = "campaign_story"
	GenerationDonorImpact   GenerationKind = "donor_impact"
	GenerationInKindAck     GenerationKind = "in_kind_ack"
	GenerationFAQAnswer     GenerationKind = "faq_answer"
)

// Generation は生成モデル呼び出し1回分の記録。OutputはJSON文字列。
type Generation struct {
	ID        string
	Kind      GenerationKind
	Model     string
	Prompt    string
	Output    string
	UserID    string
	CreatedAt time.Time
}

// OutboxEmail は送信扱いにしたメールの記録。実際の配送は行わない。
type OutboxEmail struct {
	ID        string
	Kind      GenerationKind
	Recipient string
	Subject   string
	Body      string
	CreatedAt time.Time
}

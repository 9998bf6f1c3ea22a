package assistant

import "github.com/milijuli/sewa/internal/model"

// ThankYouEmailInput はお礼メール生成の入力。
type ThankYouEmailInput struct {
	DonorName    string `json:"donor_name" validate:"required,max=100"`
	DonorEmail   string `json:"donor_email" validate:"omitempty,email"`
	ProjectTitle string `json:"project_title" validate:"required,max=200"`
	Amount       int64  `json:"amount" validate:"gt=0"`
	Message      string `json:"message" validate:"max=500"`
}

// Email は件名と本文からなる生成メール。
type Email struct {
	Subject string `json:"subject" validate:"required,max=150"`
	Body    string `json:"body" validate:"required,max=4000"`
}

// ProjectSEOInput はSEO用メタデータ生成の入力。
type ProjectSEOInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Summary  string `json:"summary" validate:"required,max=2000"`
	Category string `json:"category" validate:"max=50"`
	Location string `json:"location" validate:"max=100"`
}

// ProjectSEO はプロジェクトページのメタデータ。
type ProjectSEO struct {
	MetaTitle       string   `json:"meta_title" validate:"required,max=60"`
	MetaDescription string   `json:"meta_description" validate:"required,max=160"`
	Keywords        []string `json:"keywords" validate:"min=1,max=10,dive,required,max=60"`
}

// CampaignStoryInput はキャンペーンストーリー生成の入力。
type CampaignStoryInput struct {
	Title         string `json:"title" validate:"required,max=200"`
	Summary       string `json:"summary" validate:"required,max=2000"`
	TargetAmount  int64  `json:"target_amount" validate:"gt=0"`
	Beneficiaries string `json:"beneficiaries" validate:"max=500"`
	Tone          string `json:"tone" validate:"omitempty,oneof=hopeful urgent grateful"`
}

// CampaignStory は生成されたキャンペーンストーリー。
type CampaignStory struct {
	Headline     string   `json:"headline" validate:"required,max=120"`
	Paragraphs   []string `json:"paragraphs" validate:"min=1,max=8,dive,required"`
	CallToAction string   `json:"call_to_action" validate:"required,max=200"`
}

// ImpactGift は寄付者の寄付1件（インパクトサマリー用）。
type ImpactGift struct {
	ProjectTitle string `json:"project_title" validate:"required"`
	Amount       int64  `json:"amount" validate:"gt=0"`
}

// DonorImpactInput は寄付者インパクトサマリー生成の入力。
type DonorImpactInput struct {
	DonorName string       `json:"donor_name" validate:"required,max=100"`
	Gifts     []ImpactGift `json:"gifts" validate:"min=1,max=100,dive"`
}

// DonorImpactSummary は寄付者向けのインパクトサマリー。
type DonorImpactSummary struct {
	Summary    string   `json:"summary" validate:"required,max=1200"`
	Highlights []string `json:"highlights" validate:"max=5,dive,required"`
}

// InKindAckInput は物品寄付の受付メール生成の入力。
type InKindAckInput struct {
	DonorName    string `json:"donor_name" validate:"required,max=100"`
	DonorEmail   string `json:"donor_email" validate:"omitempty,email"`
	ItemName     string `json:"item_name" validate:"required,max=200"`
	Quantity     int    `json:"quantity" validate:"gt=0"`
	Unit         string `json:"unit" validate:"max=30"`
	ProjectTitle string `json:"project_title" validate:"required,max=200"`
}

// FAQAnswerInput はFAQ回答生成の入力。FAQsが回答の根拠となるコーパス。
type FAQAnswerInput struct {
	Question string      `json:"question" validate:"required,max=500"`
	FAQs     []model.FAQ `json:"-" validate:"min=1"`
}

// FAQAnswer は生成されたFAQ回答。RelatedIDsはコーパスに存在するIDのみを含む。
type FAQAnswer struct {
	Answer     string   `json:"answer" validate:"required,max=1500"`
	RelatedIDs []string `json:"related_ids"`
	Confident  bool     `json:"confident"`
}

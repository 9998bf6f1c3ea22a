package assistant

import (
	"context"
	"log/slog"

	"github.com/milijuli/sewa/internal/model"
)

var (
	thankYouTask = task{kind: model.GenerationThankYouEmail, schema: emailSchema, temperature: 0.7}
	seoTask      = task{kind: model.GenerationProjectSEO, schema: seoSchema, temperature: 0.3}
	storyTask    = task{kind: model.GenerationCampaignStory, schema: storySchema, temperature: 0.8}
	impactTask   = task{kind: model.GenerationDonorImpact, schema: impactSchema, temperature: 0.6}
	inKindTask   = task{kind: model.GenerationInKindAck, schema: emailSchema, temperature: 0.6}
	faqTask      = task{kind: model.GenerationFAQAnswer, schema: faqSchema, temperature: 0.2}
)

// ThankYouEmail は寄付へのお礼メールを生成する。
// DonorEmailが指定されていればメールを送信扱いにする（送信失敗はログのみ）。
func (s *Service) ThankYouEmail(ctx context.Context, userID string, in ThankYouEmailInput) (*Email, error) {
	email, err := run[Email](ctx, s, thankYouTask, userID, in)
	if err != nil {
		return nil, err
	}
	s.send(ctx, model.GenerationThankYouEmail, in.DonorEmail, email)
	return email, nil
}

// ProjectSEO はプロジェクトページのSEOメタデータを生成する。
func (s *Service) ProjectSEO(ctx context.Context, userID string, in ProjectSEOInput) (*ProjectSEO, error) {
	return run[ProjectSEO](ctx, s, seoTask, userID, in)
}

// CampaignStory はキャンペーンストーリーを生成する。
func (s *Service) CampaignStory(ctx context.Context, userID string, in CampaignStoryInput) (*CampaignStory, error) {
	return run[CampaignStory](ctx, s, storyTask, userID, in)
}

// DonorImpactSummary は寄付者の寄付履歴からインパクトサマリーを生成する。
func (s *Service) DonorImpactSummary(ctx context.Context, userID string, in DonorImpactInput) (*DonorImpactSummary, error) {
	return run[DonorImpactSummary](ctx, s, impactTask, userID, in)
}

// InKindAcknowledgement は物品寄付の受付メールを生成し、DonorEmailがあれば送信扱いにする。
func (s *Service) InKindAcknowledgement(ctx context.Context, userID string, in InKindAckInput) (*Email, error) {
	email, err := run[Email](ctx, s, inKindTask, userID, in)
	if err != nil {
		return nil, err
	}
	s.send(ctx, model.GenerationInKindAck, in.DonorEmail, email)
	return email, nil
}

// FAQAnswer はFAQコーパスに基づいて質問に回答する。
// モデルが返した関連IDのうちコーパスに存在しないものは除外する。
func (s *Service) FAQAnswer(ctx context.Context, userID string, in FAQAnswerInput) (*FAQAnswer, error) {
	answer, err := run[FAQAnswer](ctx, s, faqTask, userID, in)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(in.FAQs))
	for _, f := range in.FAQs {
		known[f.ID] = true
	}
	related := make([]string, 0, len(answer.RelatedIDs))
	seen := make(map[string]bool, len(answer.RelatedIDs))
	for _, id := range answer.RelatedIDs {
		if known[id] && !seen[id] {
			related = append(related, id)
			seen[id] = true
		}
	}
	answer.RelatedIDs = related
	return answer, nil
}

func (s *Service) send(ctx context.Context, kind model.GenerationKind, recipient string, email *Email) {
	if s.mailer == nil || recipient == "" {
		return
	}
	err := s.mailer.Send(ctx, &model.OutboxEmail{
		Kind:      kind,
		Recipient: recipient,
		Subject:   email.Subject,
		Body:      email.Body,
	})
	if err != nil {
		slog.WarnContext(ctx, "メール送信に失敗しました",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

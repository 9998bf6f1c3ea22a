package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
)

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, email *model.OutboxEmail) error
}

// OutboxMailer は実際の配送を行わず、ログ出力とアウトボックスへの記録で送信とみなすMailer。
type OutboxMailer struct {
	outbox repository.OutboxRepository
}

// NewOutboxMailer はOutboxMailerを生成する。outboxがnilの場合はログ出力のみ行う。
func NewOutboxMailer(outbox repository.OutboxRepository) *OutboxMailer {
	return &OutboxMailer{outbox: outbox}
}

var _ Mailer = (*OutboxMailer)(nil)

// Send はメールを記録する。
func (m *OutboxMailer) Send(ctx context.Context, email *model.OutboxEmail) error {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now()
	}

	slog.InfoContext(ctx, "メールを送信しました",
		slog.String("email_id", email.ID),
		slog.String("kind", string(email.Kind)),
		slog.String("recipient", email.Recipient),
		slog.String("subject", email.Subject),
	)

	if m.outbox == nil {
		return nil
	}
	if err := m.outbox.Create(ctx, email); err != nil {
		return fmt.Errorf("failed to record outbox email: %w", err)
	}
	return nil
}

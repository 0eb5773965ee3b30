package port

import (
	"context"

	"paysheet/internal/service/checkout/domain"
)

// OutcomePublisher 是结算结果事件的出站端口。
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event *domain.CheckoutCompleted) error
}

package adapter

import (
	"context"

	"paysheet/internal/pkg/logger"
	"paysheet/internal/service/checkout/domain"
)

// LogOutcomeAdapter 在未启用 Kafka 时把结算结果写入日志。
type LogOutcomeAdapter struct{}

func NewLogOutcomeAdapter() *LogOutcomeAdapter {
	return &LogOutcomeAdapter{}
}

func (LogOutcomeAdapter) PublishOutcome(ctx context.Context, event *domain.CheckoutCompleted) error {
	logger.Ctx(ctx).Info().
		Str("attempt_id", event.AttemptID).
		Str("session", event.SessionID).
		Str("item", event.ItemName).
		Str("total", event.Total.StringFixed(2)).
		Str("currency", event.Currency).
		Str("coupon", event.CouponCode).
		Bool("success", event.Success).
		Str("reason", event.Reason).
		Msg("checkout completed")
	return nil
}

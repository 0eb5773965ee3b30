package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"paysheet/internal/pkg/mq"
	"paysheet/internal/service/checkout/domain"
)

// OutcomeKafkaAdapter 实现了 port.OutcomePublisher，按会话分区发布结算结果。
type OutcomeKafkaAdapter struct {
	writer mq.Writer
}

// NewOutcomeKafkaAdapter 创建一个新的结果发布适配器。
func NewOutcomeKafkaAdapter(writer mq.Writer) *OutcomeKafkaAdapter {
	return &OutcomeKafkaAdapter{writer: writer}
}

func (a *OutcomeKafkaAdapter) PublishOutcome(ctx context.Context, event *domain.CheckoutCompleted) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal checkout outcome")
	}
	// 同一会话的结果落在同一分区，保持顺序
	return mq.ProduceMessage(ctx, a.writer, []byte(event.SessionID), eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *OutcomeKafkaAdapter) Close() error {
	return a.writer.Close()
}

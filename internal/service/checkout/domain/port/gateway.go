package port

import (
	"context"

	"paysheet/internal/service/checkout/domain"
)

// NotificationKind 区分支付网关在一次尝试中发出的通知。
type NotificationKind int

const (
	NotificationPresentResult NotificationKind = iota + 1
	NotificationCouponCodeChanged
	NotificationAuthorized
	NotificationFinished
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationPresentResult:
		return "present_result"
	case NotificationCouponCodeChanged:
		return "coupon_code_changed"
	case NotificationAuthorized:
		return "authorized"
	case NotificationFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Notification 是网关发给结算编排的一条通知。
//
// 同一次尝试的通知在一个通道上按序到达：展示结果先于优惠码和授权通知，
// 授权先于结束。需要回复的通知带有容量为 1 的回复通道，编排方写入后不会阻塞。
type Notification struct {
	Kind NotificationKind

	// NotificationPresentResult
	Presented bool

	// NotificationCouponCodeChanged
	CouponCode  string
	CouponReply chan<- domain.CouponUpdate

	// NotificationAuthorized
	Payment   *domain.AuthorizedPayment
	AuthReply chan<- domain.AuthorizationResult
}

// PaymentGateway 是平台支付授权能力的出站端口。
// 界面展示和支付凭证的生成都由网关负责，核心逻辑看不到它的内部。
type PaymentGateway interface {
	// Availability 查询会话所在设备是否支持支付，以及是否绑定了受支持卡组织的卡。
	Availability(ctx context.Context, sessionID string, networks []domain.Network) (domain.Availability, error)

	// Present 开始一次展示，返回这次尝试的通知通道。网关在发出 Finished
	// 后或连接断开时关闭通道。
	Present(ctx context.Context, req *domain.PaymentRequest) (<-chan Notification, error)
}

package adapter

import "paysheet/internal/service/checkout/domain"

// 设备和服务端之间的帧类型。
const (
	// 设备 -> 服务端
	FrameHello         = "hello"
	FramePresented     = "presented"
	FrameCouponChanged = "coupon_changed"
	FrameAuthorized    = "authorized"
	FrameFinished      = "finished"

	// 服务端 -> 设备
	FramePresent             = "present"
	FrameCouponUpdate        = "coupon_update"
	FrameAuthorizationResult = "authorization_result"
	FrameError               = "error"
)

// Frame 是 websocket 上传输的一条 JSON 消息，按 Type 使用对应字段。
type Frame struct {
	Type      string `json:"type"`
	AttemptID string `json:"attempt_id,omitempty"`

	// hello
	CanMakePayments bool             `json:"can_make_payments,omitempty"`
	Networks        []domain.Network `json:"networks,omitempty"`

	// present
	Request *domain.PaymentRequest `json:"request,omitempty"`

	// presented
	Presented bool `json:"presented,omitempty"`

	// coupon_changed / coupon_update
	CouponCode   string               `json:"coupon_code,omitempty"`
	CouponUpdate *domain.CouponUpdate `json:"coupon_update,omitempty"`

	// authorized / authorization_result
	Payment             *domain.AuthorizedPayment   `json:"payment,omitempty"`
	AuthorizationResult *domain.AuthorizationResult `json:"authorization_result,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

package application

import "paysheet/internal/service/checkout/domain"

// QuoteResponse 是报价和优惠码预览的响应体
type QuoteResponse struct {
	Item      domain.Item           `json:"item"`
	Country   domain.CountryContext `json:"country"`
	LineItems domain.LineItems      `json:"line_items"`
}

// StartCheckoutRequest 是发起一次结算的请求体
type StartCheckoutRequest struct {
	SessionID string `json:"session"`
	ItemIndex int    `json:"index"`
}

// CheckoutResultResponse 是结算结果的响应体
type CheckoutResultResponse struct {
	AttemptID string               `json:"attempt_id"`
	Pending   bool                 `json:"pending,omitempty"`
	Success   bool                 `json:"success"`
	Token     *domain.PaymentToken `json:"token,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// NewCheckoutResultResponse 把领域结果转换成响应体。
func NewCheckoutResultResponse(result domain.CheckoutResult) *CheckoutResultResponse {
	resp := &CheckoutResultResponse{
		AttemptID: result.AttemptID,
		Success:   result.Success,
		Token:     result.Token,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return resp
}

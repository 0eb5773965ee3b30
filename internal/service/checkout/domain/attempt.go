package domain

import (
	"errors"
	"fmt"
	"time"
)

// Attempt 是一次结算尝试持有的全部状态，从开始到结束只属于这一次尝试。
// 它不做持久化，也不在尝试之间共享。
type Attempt struct {
	ID              string
	SessionID       string
	Item            Item
	Country         CountryContext
	Coupons         []Coupon
	ShippingMethods []ShippingMethod
	Items           LineItems
	CouponCode      string
	State           State
	StartedAt       time.Time
}

// NewAttempt 计算基准摘要并创建一个处于 IDLE 的尝试。
func NewAttempt(id, sessionID string, item Item, country CountryContext, coupons []Coupon, shipping []ShippingMethod) (*Attempt, error) {
	items, err := ComputeBaseline(item)
	if err != nil {
		return nil, err
	}
	registered := make([]Coupon, len(coupons))
	copy(registered, coupons)
	methods := make([]ShippingMethod, len(shipping))
	copy(methods, shipping)

	return &Attempt{
		ID:              id,
		SessionID:       sessionID,
		Item:            item,
		Country:         country,
		Coupons:         registered,
		ShippingMethods: methods,
		Items:           items,
		State:           StateIdle,
		StartedAt:       time.Now(),
	}, nil
}

// MarkAsPresenting 只能从 IDLE 进入。
func (a *Attempt) MarkAsPresenting() error {
	if a.State != StateIdle {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, StatePresenting)
	}
	a.State = StatePresenting
	return nil
}

// MarkAsAuthorized 只能从 PRESENTING 进入。
func (a *Attempt) MarkAsAuthorized() error {
	if a.State != StatePresenting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, StateAuthorized)
	}
	a.State = StateAuthorized
	return nil
}

func (a *Attempt) MarkAsIdle() {
	a.State = StateIdle
}

// ChangeCoupon 用新的优惠码重算摘要。失败时摘要保持不变。
func (a *Attempt) ChangeCoupon(code string) (CouponUpdate, error) {
	items, err := ApplyCoupon(a.Items, code, a.Coupons)
	if err != nil {
		return a.CouponRejected(err), err
	}
	a.Items = items
	if code != "" && len(a.Coupons) > 0 {
		a.CouponCode = code
	}
	return CouponUpdate{Items: a.Items.Clone()}, nil
}

// CouponRejected 构造拒绝优惠码的回复，保留当前摘要和配送方式。
func (a *Attempt) CouponRejected(err error) CouponUpdate {
	return CouponUpdate{
		Items:           a.Items.Clone(),
		ShippingMethods: a.ShippingMethods,
		Errors: []PaymentError{{
			Code:    PaymentErrorCouponCodeInvalid,
			Message: couponErrorMessage(err),
		}},
	}
}

func couponErrorMessage(err error) string {
	if errors.Is(err, ErrCouponNotApplicable) {
		return "Coupon code is not applicable."
	}
	return "Coupon code is not valid."
}

// CheckShippingCountry 校验授权支付的配送国家，不符时返回面板要展示的错误。
func (a *Attempt) CheckShippingCountry(payment *AuthorizedPayment) []PaymentError {
	if payment.ShippingCountryCode() == string(a.Country.Code) {
		return nil
	}
	return []PaymentError{
		{
			Code:    PaymentErrorShippingAddressUnserviceable,
			Message: fmt.Sprintf("Sample App only available in the %s", a.Country.DisplayName),
		},
		{
			Code:    PaymentErrorShippingContactInvalid,
			Field:   PostalAddressCountryKey,
			Message: "Invalid country",
		},
	}
}

// Total 返回当前总计金额。
func (a *Attempt) Total() LineItem {
	total, _ := a.Items.GrandTotal()
	return total
}

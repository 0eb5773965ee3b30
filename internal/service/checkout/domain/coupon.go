package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Coupon 是一张固定金额的优惠码，按码值不区分大小写匹配。
type Coupon struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`

	// Rule 是可选的适用条件表达式，为空表示无条件适用。
	// 它交给 RuleEngine 评估，例如 `price >= 100.0 && country == "IN"`。
	Rule string `json:"rule,omitempty"`
}

// Matches 判断用户输入的码值是否命中这张券。
func (c Coupon) Matches(code string) bool {
	return strings.EqualFold(c.Code, code)
}

// FindCoupon 按注册顺序返回第一张命中的券。
func FindCoupon(coupons []Coupon, code string) (Coupon, bool) {
	for _, coupon := range coupons {
		if coupon.Matches(code) {
			return coupon, true
		}
	}
	return Coupon{}, false
}

// Fact 是规则引擎评估优惠券条件时看到的事实。
type Fact struct {
	Code     string  `json:"code"`
	Price    float64 `json:"price"`
	Country  string  `json:"country"`
	Currency string  `json:"currency"`
}

// RuleEngine 评估优惠券的适用条件，由基础设施层实现。
type RuleEngine interface {
	Evaluate(rule string, fact Fact) (bool, error)
}

// Validate 拒绝空码值和负金额。
func (c Coupon) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("%w: coupon code is empty", ErrInvalidCouponCode)
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("%w: coupon %s has negative amount %s", ErrInvalidCouponCode, c.Code, c.Amount.String())
	}
	return nil
}

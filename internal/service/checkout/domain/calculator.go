package domain

import (
	"github.com/shopspring/decimal"
)

// TaxRate 是固定税率 5%。
var TaxRate = decimal.RequireFromString("0.05")

// moneyPlaces 是货币最小单位的小数位数，USD 和 INR 都是两位。
const moneyPlaces = 2

// roundMoney 四舍五入（远离零）到货币最小单位。
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// TaxFor 返回 subtotal 对应的税额。
func TaxFor(subtotal decimal.Decimal) decimal.Decimal {
	return roundMoney(subtotal.Mul(TaxRate))
}

// ComputeBaseline 生成未使用优惠券时的摘要：商品、税、总计。
func ComputeBaseline(item Item) (LineItems, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	tax := TaxFor(item.Price)
	return LineItems{
		{Label: item.Name, Amount: item.Price},
		{Label: TaxLabel, Amount: tax},
		{Label: TotalLabel, Amount: item.Price.Add(tax), Final: true},
	}, nil
}

// ApplyCoupon 用第一张命中的优惠券重算摘要。
//
// 码值为空或没有注册任何券时原样返回 current。没有命中时返回
// ErrInvalidCouponCode，调用方应保留之前的摘要。
//
// 结果只取决于 current 的第一行和是否存在税行，所以对已经打过折的
// 序列再次调用不会叠加折扣。折扣不会超过商品价格，小计最低为 0。
// 券额大于商品价格时，折扣行显示封顶后的金额而不是券额。
func ApplyCoupon(current LineItems, code string, coupons []Coupon) (LineItems, error) {
	if code == "" || len(coupons) == 0 || len(current) == 0 {
		return current, nil
	}

	coupon, ok := FindCoupon(coupons, code)
	if !ok {
		return current, ErrInvalidCouponCode
	}
	return discounted(current, coupon), nil
}

func discounted(current LineItems, coupon Coupon) LineItems {
	item := current[0]

	discount := coupon.Amount
	if discount.GreaterThan(item.Amount) {
		discount = item.Amount
	}
	subtotal := item.Amount.Sub(discount)
	discountLine := LineItem{Label: DiscountLabel, Amount: discount.Neg()}

	if current.Has(TaxLabel) {
		tax := TaxFor(subtotal)
		return LineItems{
			item,
			discountLine,
			{Label: TaxLabel, Amount: tax, Final: true},
			{Label: TotalLabel, Amount: subtotal.Add(tax), Final: true},
		}
	}

	return LineItems{
		item,
		discountLine,
		{Label: TotalLabel, Amount: subtotal, Final: true},
	}
}

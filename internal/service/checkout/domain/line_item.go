package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	TaxLabel      = "Tax"
	TotalLabel    = "Total"
	DiscountLabel = "Coupon Code Applied"
)

// LineItem 是支付摘要中的一行。序列中的最后一行约定为总计。
type LineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Final  bool            `json:"final"`
}

// MarshalJSON 以货币最小单位的定点格式输出金额。
func (l LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Label  string `json:"label"`
		Amount string `json:"amount"`
		Final  bool   `json:"final"`
	}{l.Label, l.Amount.StringFixed(2), l.Final})
}

type LineItems []LineItem

// GrandTotal 返回最后一行。
func (items LineItems) GrandTotal() (LineItem, bool) {
	if len(items) == 0 {
		return LineItem{}, false
	}
	return items[len(items)-1], true
}

func (items LineItems) Has(label string) bool {
	for _, item := range items {
		if item.Label == label {
			return true
		}
	}
	return false
}

// Balanced 判断总计是否等于其前所有行之和。
func (items LineItems) Balanced() bool {
	total, ok := items.GrandTotal()
	if !ok {
		return false
	}
	sum := decimal.Zero
	for _, item := range items[:len(items)-1] {
		sum = sum.Add(item.Amount)
	}
	return sum.Equal(total.Amount)
}

func (items LineItems) Clone() LineItems {
	if items == nil {
		return nil
	}
	out := make(LineItems, len(items))
	copy(out, items)
	return out
}

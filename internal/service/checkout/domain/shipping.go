package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingType 告诉支付面板如何称呼配送方式。
type ShippingType string

const (
	ShippingTypeDelivery      ShippingType = "delivery"
	ShippingTypeShipping      ShippingType = "shipping"
	ShippingTypeStorePickup   ShippingType = "storePickup"
	ShippingTypeServicePickup ShippingType = "servicePickup"
)

// ShippingMethod 是一种可选的配送方式。
// StartAfterDays 和 EndAfterDays 同时设置时才有预计送达区间。
type ShippingMethod struct {
	Label          string          `json:"label"`
	Amount         decimal.Decimal `json:"amount"`
	Detail         string          `json:"detail,omitempty"`
	Identifier     string          `json:"identifier,omitempty"`
	StartAfterDays *int            `json:"start_after_days,omitempty"`
	EndAfterDays   *int            `json:"end_after_days,omitempty"`
}

// DateRange 是按日历日计的送达区间。
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DeliveryWindow 以 now 所在日期为起点计算送达区间，只保留年月日。
func (m ShippingMethod) DeliveryWindow(now time.Time) (DateRange, bool) {
	if m.StartAfterDays == nil || m.EndAfterDays == nil {
		return DateRange{}, false
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return DateRange{
		Start: day.AddDate(0, 0, *m.StartAfterDays),
		End:   day.AddDate(0, 0, *m.EndAfterDays),
	}, true
}

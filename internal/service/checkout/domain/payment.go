package domain

import (
	"github.com/shopspring/decimal"
)

// Network 是支付面板支持的卡组织。
type Network string

const (
	NetworkAmex       Network = "amex"
	NetworkDiscover   Network = "discover"
	NetworkMasterCard Network = "masterCard"
	NetworkVisa       Network = "visa"
)

// DefaultNetworks 是默认支持的卡组织。
func DefaultNetworks() []Network {
	return []Network{NetworkAmex, NetworkDiscover, NetworkMasterCard, NetworkVisa}
}

// MerchantCapability 是商户支持的支付处理协议。
type MerchantCapability string

const (
	Capability3DS    MerchantCapability = "3DS"
	CapabilityEMV    MerchantCapability = "EMV"
	CapabilityCredit MerchantCapability = "credit"
	CapabilityDebit  MerchantCapability = "debit"
)

// Availability 是设备侧支付能力的查询结果。
type Availability struct {
	// CanMakePayments 表示设备支持这种支付方式。
	CanMakePayments bool `json:"can_make_payments"`
	// CanSetupCards 表示用户至少绑定了一张受支持卡组织的卡。
	CanSetupCards bool `json:"can_setup_cards"`
}

// PaymentRequest 是交给支付网关展示的完整请求。
type PaymentRequest struct {
	AttemptID            string               `json:"attempt_id"`
	SessionID            string               `json:"session_id"`
	MerchantID           string               `json:"merchant_id"`
	Country              CountryContext       `json:"country"`
	SupportedNetworks    []Network            `json:"supported_networks"`
	MerchantCapabilities []MerchantCapability `json:"merchant_capabilities"`
	SummaryItems         LineItems            `json:"summary_items"`
	ShippingType         ShippingType         `json:"shipping_type"`
	ShippingMethods      []ShippingMethod     `json:"shipping_methods,omitempty"`
	SupportsCouponCode   bool                 `json:"supports_coupon_code"`
}

// PaymentToken 是网关返回的不透明支付凭证，原样转交下游。
type PaymentToken struct {
	TransactionIdentifier string  `json:"transaction_identifier"`
	Network               Network `json:"network,omitempty"`
	PaymentData           []byte  `json:"payment_data"`
}

// PostalAddress 是配送地址，只有国家码参与校验。
type PostalAddress struct {
	Street         string `json:"street,omitempty"`
	City           string `json:"city,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	Country        string `json:"country,omitempty"`
	ISOCountryCode string `json:"iso_country_code"`
}

type Contact struct {
	Name          string         `json:"name,omitempty"`
	PostalAddress *PostalAddress `json:"postal_address,omitempty"`
}

// AuthorizedPayment 是用户在支付面板上确认后的支付。
type AuthorizedPayment struct {
	Token           PaymentToken `json:"token"`
	ShippingContact *Contact     `json:"shipping_contact,omitempty"`
}

// ShippingCountryCode 返回配送地址的国家码，缺失时为空串。
func (p *AuthorizedPayment) ShippingCountryCode() string {
	if p == nil || p.ShippingContact == nil || p.ShippingContact.PostalAddress == nil {
		return ""
	}
	return p.ShippingContact.PostalAddress.ISOCountryCode
}

// PaymentErrorCode 区分回传给支付面板的错误种类。
type PaymentErrorCode string

const (
	PaymentErrorCouponCodeInvalid            PaymentErrorCode = "couponCodeInvalid"
	PaymentErrorShippingAddressUnserviceable PaymentErrorCode = "shippingAddressUnserviceable"
	PaymentErrorShippingContactInvalid       PaymentErrorCode = "shippingContactInvalid"
)

// PostalAddressCountryKey 是地址中国家字段的键名。
const PostalAddressCountryKey = "country"

// PaymentError 是展示在支付面板上的一条错误。
type PaymentError struct {
	Code    PaymentErrorCode `json:"code"`
	Field   string           `json:"field,omitempty"`
	Message string           `json:"message"`
}

// CouponUpdate 是对优惠码变更的回复。出错时 Items 和 ShippingMethods 保持原样。
type CouponUpdate struct {
	Items           LineItems        `json:"items"`
	ShippingMethods []ShippingMethod `json:"shipping_methods,omitempty"`
	Errors          []PaymentError   `json:"errors,omitempty"`
}

type AuthorizationStatus string

const (
	AuthorizationSuccess AuthorizationStatus = "success"
	AuthorizationFailure AuthorizationStatus = "failure"
)

// AuthorizationResult 是对授权通知的回复。
type AuthorizationResult struct {
	Status AuthorizationStatus `json:"status"`
	Errors []PaymentError      `json:"errors,omitempty"`
}

// CheckoutResult 是一次结算尝试的最终结果，每次尝试恰好产生一次。
type CheckoutResult struct {
	AttemptID string
	Success   bool
	Token     *PaymentToken
	Err       error
}

// CheckoutCompleted 是结算结束时发布给下游的事件。
type CheckoutCompleted struct {
	AttemptID   string          `json:"attempt_id"`
	SessionID   string          `json:"session_id"`
	ItemName    string          `json:"item_name"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	CouponCode  string          `json:"coupon_code,omitempty"`
	Success     bool            `json:"success"`
	Token       *PaymentToken   `json:"token,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	CompletedAt int64           `json:"completed_at"`
}

package domain

import "errors"

// 领域错误。调用方用 errors.Is 判断，接口层据此映射状态码。
var (
	ErrInvalidItem              = errors.New("invalid catalog item")
	ErrItemNotFound             = errors.New("catalog item not found")
	ErrUnknownCountry           = errors.New("unknown country code")
	ErrUnsupportedPaymentMethod = errors.New("payment method is not supported on this device")
	ErrPresentationFailure      = errors.New("payment sheet could not be presented")
	ErrInvalidCouponCode        = errors.New("coupon code is not valid")
	ErrCouponNotApplicable      = errors.New("coupon is not applicable to this checkout")
	ErrShippingCountryMismatch  = errors.New("shipping country does not match the checkout country")
	ErrCheckoutInProgress       = errors.New("a checkout attempt is already in flight for this session")
	ErrCheckoutCancelled        = errors.New("checkout was cancelled before authorization")
	ErrGatewayClosed            = errors.New("payment gateway closed the notification channel")
	ErrInvalidTransition        = errors.New("invalid checkout state transition")
)

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAttempt(t *testing.T) *Attempt {
	t.Helper()
	a, err := NewAttempt("a-1", "s-1", Item{Name: "ItemName", Price: dec("110.00")}, CountryIN.Context(), festival, nil)
	require.NoError(t, err)
	return a
}

func TestAttempt_Transitions(t *testing.T) {
	a := newTestAttempt(t)
	assert.Equal(t, StateIdle, a.State)

	assert.ErrorIs(t, a.MarkAsAuthorized(), ErrInvalidTransition)
	require.NoError(t, a.MarkAsPresenting())
	assert.ErrorIs(t, a.MarkAsPresenting(), ErrInvalidTransition)
	require.NoError(t, a.MarkAsAuthorized())
	a.MarkAsIdle()
	assert.Equal(t, StateIdle, a.State)
}

func TestAttempt_ChangeCoupon(t *testing.T) {
	a := newTestAttempt(t)

	update, err := a.ChangeCoupon("festival")
	require.NoError(t, err)
	assert.Empty(t, update.Errors)
	assert.True(t, a.Total().Amount.Equal(dec("63.00")))
	assert.Equal(t, "festival", a.CouponCode)

	update, err = a.ChangeCoupon("wrong")
	assert.ErrorIs(t, err, ErrInvalidCouponCode)
	require.Len(t, update.Errors, 1)
	assert.Equal(t, PaymentErrorCouponCodeInvalid, update.Errors[0].Code)
	assert.Equal(t, "Coupon code is not valid.", update.Errors[0].Message)
	assert.True(t, a.Total().Amount.Equal(dec("63.00")), "rejected code keeps the previous summary")
}

func TestAttempt_CouponRejectedNotApplicable(t *testing.T) {
	a := newTestAttempt(t)
	update := a.CouponRejected(ErrCouponNotApplicable)
	require.Len(t, update.Errors, 1)
	assert.Equal(t, "Coupon code is not applicable.", update.Errors[0].Message)
	assert.Len(t, update.Items, 3)
}

func TestAttempt_CheckShippingCountry(t *testing.T) {
	a := newTestAttempt(t)

	ok := &AuthorizedPayment{ShippingContact: &Contact{PostalAddress: &PostalAddress{ISOCountryCode: "IN"}}}
	assert.Empty(t, a.CheckShippingCountry(ok))

	wrong := &AuthorizedPayment{ShippingContact: &Contact{PostalAddress: &PostalAddress{ISOCountryCode: "US"}}}
	errs := a.CheckShippingCountry(wrong)
	require.Len(t, errs, 2)
	assert.Equal(t, PaymentErrorShippingAddressUnserviceable, errs[0].Code)
	assert.Equal(t, "Sample App only available in the India", errs[0].Message)
	assert.Equal(t, PaymentErrorShippingContactInvalid, errs[1].Code)
	assert.Equal(t, PostalAddressCountryKey, errs[1].Field)
	assert.Equal(t, "Invalid country", errs[1].Message)

	assert.Len(t, a.CheckShippingCountry(&AuthorizedPayment{}), 2, "missing address is a mismatch")
}

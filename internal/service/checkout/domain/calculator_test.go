package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertLines(t *testing.T, want []LineItem, got LineItems) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Label, got[i].Label, "label of line %d", i)
		assert.True(t, want[i].Amount.Equal(got[i].Amount), "amount of line %d: want %s got %s", i, want[i].Amount, got[i].Amount)
		assert.Equal(t, want[i].Final, got[i].Final, "final flag of line %d", i)
	}
}

var festival = []Coupon{{Code: "FESTIVAL", Amount: dec("50")}}

func TestComputeBaseline(t *testing.T) {
	items, err := ComputeBaseline(Item{Name: "ItemName", Price: dec("110.00")})
	require.NoError(t, err)

	assertLines(t, []LineItem{
		{Label: "ItemName", Amount: dec("110.00")},
		{Label: TaxLabel, Amount: dec("5.50")},
		{Label: TotalLabel, Amount: dec("115.50"), Final: true},
	}, items)
	assert.True(t, items.Balanced())
}

func TestComputeBaseline_Rounding(t *testing.T) {
	cases := map[string]string{
		"139.99": "7.00", // 6.9995
		"49.99":  "2.50", // 2.4995
		"0.10":   "0.01", // 0.005 half away from zero
		"0.09":   "0.00", // 0.0045
		"0":      "0",
	}
	for price, tax := range cases {
		items, err := ComputeBaseline(Item{Name: "x", Price: dec(price)})
		require.NoError(t, err)
		assert.True(t, items[1].Amount.Equal(dec(tax)), "price %s: want tax %s got %s", price, tax, items[1].Amount)
		assert.True(t, items.Balanced())
	}
}

func TestComputeBaseline_RejectsInvalidItems(t *testing.T) {
	_, err := ComputeBaseline(Item{Name: "", Price: dec("1")})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = ComputeBaseline(Item{Name: "x", Price: dec("-0.01")})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestApplyCoupon_Festival(t *testing.T) {
	baseline, err := ComputeBaseline(Item{Name: "ItemName", Price: dec("110.00")})
	require.NoError(t, err)

	items, err := ApplyCoupon(baseline, "FESTIVAL", festival)
	require.NoError(t, err)

	assertLines(t, []LineItem{
		{Label: "ItemName", Amount: dec("110.00")},
		{Label: DiscountLabel, Amount: dec("-50.00")},
		{Label: TaxLabel, Amount: dec("3.00"), Final: true},
		{Label: TotalLabel, Amount: dec("63.00"), Final: true},
	}, items)
	assert.True(t, items.Balanced())
}

func TestApplyCoupon_CaseInsensitiveFirstMatch(t *testing.T) {
	baseline, _ := ComputeBaseline(Item{Name: "x", Price: dec("100")})
	coupons := []Coupon{
		{Code: "Festival", Amount: dec("10")},
		{Code: "FESTIVAL", Amount: dec("20")},
	}

	items, err := ApplyCoupon(baseline, "fEsTiVaL", coupons)
	require.NoError(t, err)
	assert.True(t, items[1].Amount.Equal(dec("-10")))
}

func TestApplyCoupon_InvalidCodeKeepsItems(t *testing.T) {
	baseline, _ := ComputeBaseline(Item{Name: "ItemName", Price: dec("110.00")})

	items, err := ApplyCoupon(baseline, "wrong", festival)
	assert.ErrorIs(t, err, ErrInvalidCouponCode)
	assert.Equal(t, baseline, items)
}

func TestApplyCoupon_NoOp(t *testing.T) {
	baseline, _ := ComputeBaseline(Item{Name: "x", Price: dec("110.00")})

	items, err := ApplyCoupon(baseline, "", festival)
	require.NoError(t, err)
	assert.Equal(t, baseline, items)

	items, err = ApplyCoupon(baseline, "FESTIVAL", nil)
	require.NoError(t, err)
	assert.Equal(t, baseline, items)
}

func TestApplyCoupon_WithoutTaxLine(t *testing.T) {
	current := LineItems{
		{Label: "x", Amount: dec("80")},
		{Label: TotalLabel, Amount: dec("80"), Final: true},
	}
	items, err := ApplyCoupon(current, "festival", festival)
	require.NoError(t, err)

	assertLines(t, []LineItem{
		{Label: "x", Amount: dec("80")},
		{Label: DiscountLabel, Amount: dec("-50")},
		{Label: TotalLabel, Amount: dec("30"), Final: true},
	}, items)
}

func TestApplyCoupon_DiscountCappedAtPrice(t *testing.T) {
	baseline, _ := ComputeBaseline(Item{Name: "x", Price: dec("49.99")})

	items, err := ApplyCoupon(baseline, "FESTIVAL", festival)
	require.NoError(t, err)
	assertLines(t, []LineItem{
		{Label: "x", Amount: dec("49.99")},
		{Label: DiscountLabel, Amount: dec("-49.99")},
		{Label: TaxLabel, Amount: dec("0"), Final: true},
		{Label: TotalLabel, Amount: dec("0"), Final: true},
	}, items)
}

func TestApplyCoupon_DoesNotStack(t *testing.T) {
	baseline, _ := ComputeBaseline(Item{Name: "x", Price: dec("110.00")})

	once, err := ApplyCoupon(baseline, "FESTIVAL", festival)
	require.NoError(t, err)
	twice, err := ApplyCoupon(once, "FESTIVAL", festival)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

// 金额以分为单位生成，覆盖 0 到 10 万。
func genMoney() gopter.Gen {
	return gen.Int64Range(0, 10_000_000).Map(func(cents int64) decimal.Decimal {
		return decimal.New(cents, -2)
	})
}

func TestCalculatorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("baseline total equals the sum of preceding lines", prop.ForAll(
		func(price decimal.Decimal) bool {
			items, err := ComputeBaseline(Item{Name: "x", Price: price})
			return err == nil && items.Balanced() && items[len(items)-1].Final
		},
		genMoney(),
	))

	properties.Property("discounted total balances and tax follows the post-discount subtotal", prop.ForAll(
		func(price, amount decimal.Decimal) bool {
			baseline, err := ComputeBaseline(Item{Name: "x", Price: price})
			if err != nil {
				return false
			}
			items, err := ApplyCoupon(baseline, "code", []Coupon{{Code: "CODE", Amount: amount}})
			if err != nil || len(items) != 4 {
				return false
			}
			subtotal := items[0].Amount.Add(items[1].Amount)
			return items.Balanced() &&
				!subtotal.IsNegative() &&
				items[2].Amount.Equal(TaxFor(subtotal))
		},
		genMoney(), genMoney(),
	))

	properties.Property("applying the same coupon twice equals applying it once", prop.ForAll(
		func(price, amount decimal.Decimal) bool {
			baseline, _ := ComputeBaseline(Item{Name: "x", Price: price})
			coupons := []Coupon{{Code: "CODE", Amount: amount}}
			once, err1 := ApplyCoupon(baseline, "CODE", coupons)
			twice, err2 := ApplyCoupon(once, "code", coupons)
			if err1 != nil || err2 != nil || len(once) != len(twice) {
				return false
			}
			for i := range once {
				if !once[i].Amount.Equal(twice[i].Amount) || once[i].Label != twice[i].Label {
					return false
				}
			}
			return true
		},
		genMoney(), genMoney(),
	))

	properties.Property("an unknown code leaves the lines untouched", prop.ForAll(
		func(price decimal.Decimal, code string) bool {
			baseline, _ := ComputeBaseline(Item{Name: "x", Price: price})
			items, err := ApplyCoupon(baseline, "unknown-"+code, festival)
			return err == ErrInvalidCouponCode && len(items) == len(baseline) && items[2].Amount.Equal(baseline[2].Amount)
		},
		genMoney(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}

package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billable/pkg/billing"
)

func TestApplyCoupon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount int64
		coupon billing.Coupon
		terms  *billing.CouponTerms
		want   string
	}{
		{"no coupon", 1000, billing.Coupon{}, nil, "1000"},
		{"flat amount off code", 500, billing.CouponCode("FLAT100"), &billing.CouponTerms{ID: "FLAT100", AmountOff: 100}, "400"},
		{"percent off code", 1000, billing.CouponCode("TEN"), &billing.CouponTerms{ID: "TEN", PercentOff: 10}, "900"},
		{"percent off code with fraction", 1499, billing.CouponCode("TEN"), &billing.CouponTerms{ID: "TEN", PercentOff: 10}, "1349.1"},
		{"fraction", 1499, billing.FractionCoupon(0.10), nil, "1349.1"},
		{"flat integer", 1000, billing.FlatCoupon(100), nil, "900"},
		{"code without terms", 1000, billing.CouponCode("X"), nil, "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := billing.ApplyCoupon(decimal.NewFromInt(tt.amount), tt.coupon, tt.terms)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestCoupon(t *testing.T) {
	t.Parallel()

	assert.True(t, billing.Coupon{}.IsZero())
	assert.True(t, billing.CouponCode("").IsZero())

	c := billing.CouponCode("SPRING")
	assert.Equal(t, billing.CouponKindCode, c.Kind())
	assert.Equal(t, "SPRING", c.Code())
	assert.False(t, c.IsZero())

	assert.Equal(t, billing.CouponKindFlat, billing.FlatCoupon(10).Kind())
	assert.Equal(t, billing.CouponKindFraction, billing.FractionCoupon(0.5).Kind())
	assert.Empty(t, billing.FlatCoupon(10).Code())
}

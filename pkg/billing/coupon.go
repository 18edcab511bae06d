package billing

import (
	"github.com/shopspring/decimal"
)

// CouponKind tells how a coupon reduces an amount.
type CouponKind uint8

const (
	CouponKindNone     CouponKind = iota
	CouponKindCode                // looked up in the processor
	CouponKindFlat                // fixed minor-unit deduction
	CouponKindFraction            // fraction of the amount, 0.10 means 10% off
)

// Coupon is a single-use discount attached to a subscribe or charge request.
// The zero value applies no discount.
type Coupon struct {
	kind     CouponKind
	code     string
	flat     int64
	fraction float64
}

// CouponCode references a coupon defined in the processor.
func CouponCode(code string) Coupon {
	if code == "" {
		return Coupon{}
	}
	return Coupon{kind: CouponKindCode, code: code}
}

// FlatCoupon deducts a fixed amount in minor units.
func FlatCoupon(amount int64) Coupon {
	return Coupon{kind: CouponKindFlat, flat: amount}
}

// FractionCoupon takes a fraction of the amount off.
func FractionCoupon(fraction float64) Coupon {
	return Coupon{kind: CouponKindFraction, fraction: fraction}
}

func (c Coupon) Kind() CouponKind { return c.kind }
func (c Coupon) Code() string     { return c.code }
func (c Coupon) IsZero() bool     { return c.kind == CouponKindNone }

// CouponTerms is a processor-side coupon definition.
type CouponTerms struct {
	ID         string
	PercentOff float64
	AmountOff  int64
}

var hundred = decimal.NewFromInt(100)

// ApplyCoupon returns amount reduced by the coupon.
// Code coupons require terms; without them the amount is returned unchanged.
func ApplyCoupon(amount decimal.Decimal, c Coupon, terms *CouponTerms) decimal.Decimal {
	switch c.kind {
	case CouponKindCode:
		if terms == nil {
			return amount
		}
		if terms.PercentOff > 0 {
			pct := decimal.NewFromFloat(terms.PercentOff).Div(hundred)
			return amount.Mul(pct).Sub(amount).Abs()
		}
		return amount.Sub(decimal.NewFromInt(terms.AmountOff))
	case CouponKindFlat:
		return amount.Sub(decimal.NewFromInt(c.flat))
	case CouponKindFraction:
		return amount.Mul(decimal.NewFromFloat(c.fraction)).Sub(amount).Abs()
	default:
		return amount
	}
}

// toMinorUnits rounds half away from zero to a whole minor unit.
func toMinorUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

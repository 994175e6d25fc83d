package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

// SiteSettings is the store-wide pricing configuration served by the backend.
type SiteSettings struct {
	VATPercentage decimal.Decimal
	DeliveryFee   decimal.Decimal
	BrandPrice    decimal.Decimal
	CustomPrice   decimal.Decimal
	Address       string
	Country       string
}

func (s SiteSettings) validate() error {
	checks := []struct {
		field string
		value decimal.Decimal
	}{
		{"vat_percentage", s.VATPercentage},
		{"delivery_fee", s.DeliveryFee},
		{"brand_price", s.BrandPrice},
		{"custom_price", s.CustomPrice},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return pkgerrors.Field(c.field, c.field+" must not be negative")
		}
	}
	return nil
}

// RewardBalance is the buyer's loyalty balance.
type RewardBalance struct {
	Points     int64 `json:"points"`
	Redeemable bool  `json:"redeemable"`
}

// Value converts the balance to currency. Non-redeemable balances are worth nothing.
func (b RewardBalance) Value(pointValue decimal.Decimal) decimal.Decimal {
	if !b.Redeemable || b.Points <= 0 || !pointValue.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(b.Points).Mul(pointValue)
}

// Coupon is a fixed-value voucher.
type Coupon struct {
	Code      string          `json:"code"`
	Value     decimal.Decimal `json:"value"`
	Redeemed  bool            `json:"redeemed"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Check rejects coupons that are already redeemed or expired at now.
func (c Coupon) Check(now time.Time) error {
	if c.Value.IsNegative() {
		return pkgerrors.Field("coupon_code", "coupon value must not be negative")
	}
	if c.Redeemed {
		return pkgerrors.Field("coupon_code", "coupon has already been redeemed")
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return pkgerrors.Field("coupon_code", "coupon has expired")
	}
	return nil
}

// Customization counts the branded and custom-design add-ons on an order.
type Customization struct {
	BrandLogoQty    int `json:"brand_logo_qty"`
	CustomDesignQty int `json:"custom_design_qty"`
}

// Totals is the breakdown produced by Compute. Subtotal and ItemsSubtotal are
// unrounded; VATAmount and Total are rounded to cents.
type Totals struct {
	ItemCount     int             `json:"item_count"`
	ItemsSubtotal decimal.Decimal `json:"items_subtotal"`
	Customization decimal.Decimal `json:"customization"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Discount      decimal.Decimal `json:"discount"`
	RewardApplied decimal.Decimal `json:"reward_applied"`
	Total         decimal.Decimal `json:"total"`
	EarnedPoints  int64           `json:"earned_points"`
}

// RewardCeiling is the largest reward that still leaves a non-negative total.
func (t Totals) RewardCeiling() decimal.Decimal {
	return ceiling(t.Subtotal, t.VATAmount, t.DeliveryFee, t.Discount)
}

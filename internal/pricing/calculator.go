package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Input gathers everything Compute needs.
type Input struct {
	Lines         []cart.Line
	Settings      SiteSettings
	OrderType     enums.OrderType
	Customization Customization
	// Coupon must already have passed Coupon.Check.
	Coupon        *Coupon
	RewardApplied decimal.Decimal
}

// ComputeTotals prices lines for the given order type with no coupon or add-ons.
func ComputeTotals(lines []cart.Line, settings SiteSettings, rewardApplied decimal.Decimal, orderType enums.OrderType) (Totals, error) {
	return Compute(Input{
		Lines:         lines,
		Settings:      settings,
		OrderType:     orderType,
		RewardApplied: rewardApplied,
	})
}

// Compute derives subtotal, VAT, delivery, discount, reward and total.
func Compute(in Input) (Totals, error) {
	if err := in.Settings.validate(); err != nil {
		return Totals{}, err
	}
	if !in.OrderType.IsValid() {
		return Totals{}, pkgerrors.Field("order_type", "order type must be delivery or collection")
	}
	if in.RewardApplied.IsNegative() {
		return Totals{}, pkgerrors.Field("reward_applied", "reward must not be negative")
	}
	if in.Customization.BrandLogoQty < 0 || in.Customization.CustomDesignQty < 0 {
		return Totals{}, pkgerrors.Field("customization", "customization quantities must not be negative")
	}

	var t Totals
	t.ItemsSubtotal = decimal.Zero
	for _, line := range in.Lines {
		if line.UnitPrice.IsNegative() {
			return Totals{}, pkgerrors.Field("unit_price", "unit price must not be negative")
		}
		if line.Quantity < 1 {
			return Totals{}, pkgerrors.Field("quantity", "quantity must be at least 1")
		}
		t.ItemCount += line.Quantity
		t.ItemsSubtotal = t.ItemsSubtotal.Add(line.Subtotal())
	}

	if len(in.Lines) == 0 {
		return zeroTotals(), nil
	}

	t.Customization = in.Settings.BrandPrice.Mul(decimal.NewFromInt(int64(in.Customization.BrandLogoQty))).
		Add(in.Settings.CustomPrice.Mul(decimal.NewFromInt(int64(in.Customization.CustomDesignQty))))
	t.Subtotal = t.ItemsSubtotal.Add(t.Customization)

	t.DeliveryFee = deliveryFee(in.Settings, in.OrderType)
	t.VATAmount = Round2(t.Subtotal.Mul(in.Settings.VATPercentage).Div(hundred))

	t.Discount = decimal.Zero
	if in.Coupon != nil {
		t.Discount = decimal.Min(in.Coupon.Value, t.Subtotal)
	}

	t.RewardApplied = decimal.Min(in.RewardApplied, t.RewardCeiling())
	t.Total = Round2(t.Subtotal.Add(t.VATAmount).Add(t.DeliveryFee).Sub(t.Discount).Sub(t.RewardApplied))
	t.EarnedPoints = EarnedPoints(t.Total)
	return t, nil
}

// ClampReward returns min(requested, balance, ceiling), never below zero.
func ClampReward(requested, balance, ceiling decimal.Decimal) decimal.Decimal {
	clamped := decimal.Min(requested, balance, ceiling)
	if clamped.IsNegative() {
		return decimal.Zero
	}
	return clamped
}

// EarnedPoints is one loyalty point per full 100 currency units of total.
func EarnedPoints(total decimal.Decimal) int64 {
	if !total.IsPositive() {
		return 0
	}
	return total.Div(hundred).Floor().IntPart()
}

// CheckoutAllowed reports whether lines can be checked out at all.
func CheckoutAllowed(lines []cart.Line) error {
	if len(lines) == 0 {
		return pkgerrors.Field("cart", "cart is empty")
	}
	return nil
}

// Round2 rounds half away from zero to two decimal places, which is half-up for
// the non-negative amounts priced here.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// deliveryFee is the flat site fee for delivery orders; collection is free.
func deliveryFee(settings SiteSettings, orderType enums.OrderType) decimal.Decimal {
	if orderType != enums.OrderTypeDelivery {
		return decimal.Zero
	}
	return settings.DeliveryFee
}

func ceiling(subtotal, vat, delivery, discount decimal.Decimal) decimal.Decimal {
	c := subtotal.Add(vat).Add(delivery).Sub(discount)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

func zeroTotals() Totals {
	return Totals{
		ItemsSubtotal: decimal.Zero,
		Customization: decimal.Zero,
		Subtotal:      decimal.Zero,
		VATAmount:     decimal.Zero,
		DeliveryFee:   decimal.Zero,
		Discount:      decimal.Zero,
		RewardApplied: decimal.Zero,
		Total:         decimal.Zero,
	}
}

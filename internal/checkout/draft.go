package checkout

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/internal/facade"
	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
)

// Options are the buyer's choices for a checkout besides the shipping form.
type Options struct {
	OrderType       enums.OrderType
	PaymentMethod   enums.PaymentMethod
	CouponCode      string
	RewardRequested decimal.Decimal
	Customization   pricing.Customization
}

func (o Options) normalized() Options {
	o.CouponCode = strings.TrimSpace(o.CouponCode)
	if o.RewardRequested.IsNegative() {
		o.RewardRequested = decimal.Zero
	}
	return o
}

// OrderDraft is the immutable snapshot sent to the backend. Its ID doubles as
// the idempotency key for the submission.
type OrderDraft struct {
	ID            string                `json:"id"`
	Owner         string                `json:"owner"`
	UserID        int64                 `json:"user_id,omitempty"`
	Lines         []cart.Line           `json:"lines"`
	Form          ShippingForm          `json:"form"`
	OrderType     enums.OrderType       `json:"order_type"`
	PaymentMethod enums.PaymentMethod   `json:"payment_method"`
	CouponCode    string                `json:"coupon_code,omitempty"`
	Customization pricing.Customization `json:"customization"`
	Totals        pricing.Totals        `json:"totals"`
	CreatedAt     time.Time             `json:"created_at"`
}

// clone detaches a draft from the session's copy, lines included.
func (d *OrderDraft) clone() *OrderDraft {
	if d == nil {
		return nil
	}
	out := *d
	out.Lines = slices.Clone(d.Lines)
	return &out
}

func (d *OrderDraft) orderRequest() facade.OrderRequest {
	items := make([]facade.OrderItem, 0, len(d.Lines))
	for _, line := range d.Lines {
		items = append(items, facade.OrderItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			SelectedSize: line.VariantKey,
			Price:        line.UnitPrice,
		})
	}
	return facade.OrderRequest{
		UserID:          d.UserID,
		FullName:        d.Form.FullName,
		Phone:           d.Form.Phone,
		Email:           d.Form.Email,
		Address:         d.Form.Address,
		City:            d.Form.City,
		PostalCode:      d.Form.PostalCode,
		Country:         d.Form.Country,
		OrderType:       d.OrderType.String(),
		PaymentMethod:   d.PaymentMethod.String(),
		CouponCode:      d.CouponCode,
		TotalPrice:      d.Totals.Total,
		VATAmount:       d.Totals.VATAmount,
		DeliveryFee:     d.Totals.DeliveryFee,
		DiscountAmount:  d.Totals.Discount,
		RewardApplied:   d.Totals.RewardApplied,
		BrandLogoQty:    d.Customization.BrandLogoQty,
		CustomDesignQty: d.Customization.CustomDesignQty,
		Items:           items,
	}
}

func (d *OrderDraft) itemName() string {
	if len(d.Lines) == 1 && d.Lines[0].DisplayName != "" {
		return d.Lines[0].DisplayName
	}
	return ""
}

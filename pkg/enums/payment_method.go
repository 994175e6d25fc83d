package enums

import (
	"fmt"
	"slices"
	"strings"
)

// PaymentMethod is how the shopper settles an order. Only card goes through
// the hosted gateway; delivery and eft orders are settled outside the app.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodDelivery PaymentMethod = "delivery"
	PaymentMethodEFT      PaymentMethod = "eft"
)

var paymentMethods = []PaymentMethod{PaymentMethodCard, PaymentMethodDelivery, PaymentMethodEFT}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool {
	return slices.Contains(paymentMethods, p)
}

// RequiresRedirect reports whether the shopper is sent to the payment gateway.
func (p PaymentMethod) RequiresRedirect() bool {
	return p == PaymentMethodCard
}

// ParsePaymentMethod accepts any casing and surrounding whitespace.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	p := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return p, nil
}

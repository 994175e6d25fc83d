package enums

import (
	"fmt"
	"slices"
	"strings"
)

// OrderType selects between home delivery and in-store collection.
// Collection orders never pay a delivery fee.
type OrderType string

const (
	OrderTypeDelivery   OrderType = "delivery"
	OrderTypeCollection OrderType = "collection"
)

var orderTypes = []OrderType{OrderTypeDelivery, OrderTypeCollection}

func (o OrderType) String() string { return string(o) }

func (o OrderType) IsValid() bool {
	return slices.Contains(orderTypes, o)
}

// ParseOrderType accepts any casing and surrounding whitespace.
func ParseOrderType(value string) (OrderType, error) {
	o := OrderType(strings.ToLower(strings.TrimSpace(value)))
	if !o.IsValid() {
		return "", fmt.Errorf("invalid order type %q", value)
	}
	return o, nil
}

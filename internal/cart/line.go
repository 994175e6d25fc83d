package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SchemaVersion is the version stamped on every persisted CartState.
const SchemaVersion = 1

const storageKeyBase = "cart:v1"

// StorageKey returns the persistence key for an owner. An empty owner maps to the
// device-scoped key.
func StorageKey(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return storageKeyBase
	}
	return storageKeyBase + ":" + owner
}

// Line is a single cart entry. (ProductID, VariantKey) identifies it.
type Line struct {
	ProductID   int64           `json:"product_id"`
	VariantKey  string          `json:"variant_key"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	DisplayName string          `json:"display_name,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty"`
}

// Subtotal is UnitPrice × Quantity, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) matches(productID int64, variantKey string) bool {
	return l.ProductID == productID && l.VariantKey == variantKey
}

// Meta carries the denormalized display fields captured on add.
type Meta struct {
	DisplayName string
	ImageRef    string
}

// State is the persisted form of a cart. Version is the payload schema;
// Revision counts writes and guards concurrent updates from other instances.
type State struct {
	Version  int    `json:"version"`
	Revision int64  `json:"revision,omitempty"`
	Lines    []Line `json:"lines"`
}

func (s State) clone() State {
	lines := make([]Line, len(s.Lines))
	copy(lines, s.Lines)
	return State{Version: s.Version, Revision: s.Revision, Lines: lines}
}

func (s State) indexOf(productID int64, variantKey string) int {
	for i := range s.Lines {
		if s.Lines[i].matches(productID, variantKey) {
			return i
		}
	}
	return -1
}

// ItemCount sums quantities across all lines.
func (s State) ItemCount() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}

func emptyState() State {
	return State{Version: SchemaVersion, Lines: []Line{}}
}

// normalizeVariant trims the variant key so " M " and "M" share an identity.
func normalizeVariant(variantKey string) string {
	return strings.TrimSpace(variantKey)
}

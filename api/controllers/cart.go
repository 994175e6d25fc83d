package controllers

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/api/middleware"
	"github.com/angelmondragon/ghanadude-checkout/api/responses"
	"github.com/angelmondragon/ghanadude-checkout/api/validators"
	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

const (
	maxDisplayNameLen = 120
	maxImageRefLen    = 512
)

// CartStores opens the live cart for an owner.
type CartStores interface {
	Store(ctx context.Context, owner string) (*cart.Store, error)
}

// StockChecker confirms a product can cover a quantity. A nil checker skips
// the check.
type StockChecker interface {
	EnsureStock(ctx context.Context, productID int64, quantity int) error
}

type cartResponse struct {
	Lines     []cart.Line     `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// newCartResponse derives every field from one state so lines and counts agree.
func newCartResponse(state cart.State) cartResponse {
	subtotal := decimal.Zero
	for _, line := range state.Lines {
		subtotal = subtotal.Add(line.Subtotal())
	}
	return cartResponse{
		Lines:     state.Lines,
		ItemCount: state.ItemCount(),
		Subtotal:  subtotal.Round(2),
	}
}

type addItemRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	VariantKey  string          `json:"variant_key" validate:"max=64"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Quantity    int             `json:"quantity" validate:"omitempty,min=1,max=99"`
	DisplayName string          `json:"display_name"`
	ImageRef    string          `json:"image_ref"`
}

type lineRequest struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	VariantKey string `json:"variant_key" validate:"max=64"`
}

type setQuantityRequest struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	VariantKey string `json:"variant_key" validate:"max=64"`
	Quantity   int    `json:"quantity" validate:"max=99"`
}

func ownerCart(r *http.Request, carts CartStores) (*cart.Store, error) {
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable")
	}
	return carts.Store(r.Context(), middleware.OwnerFromContext(r.Context()))
}

// CartFetch returns the caller's cart.
func CartFetch(carts CartStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store.Snapshot()))
	}
}

// CartAddItem adds a line or raises its quantity. When stock is non-nil the
// resulting quantity is confirmed with the backend first.
func CartAddItem(carts CartStores, stock StockChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Quantity == 0 {
			payload.Quantity = 1
		}

		store, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if stock != nil {
			want := payload.Quantity + quantityInCart(store, payload.ProductID, payload.VariantKey)
			if err := stock.EnsureStock(r.Context(), payload.ProductID, want); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		meta := cart.Meta{
			DisplayName: validators.SanitizeString(payload.DisplayName, maxDisplayNameLen),
			ImageRef:    validators.SanitizeString(payload.ImageRef, maxImageRefLen),
		}
		if err := store.AddOrIncrement(r.Context(), payload.ProductID, payload.VariantKey, payload.UnitPrice, payload.Quantity, meta); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store.Snapshot()))
	}
}

// CartDecrementItem lowers a line by one, removing it at zero.
func CartDecrementItem(carts CartStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload lineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Decrement(r.Context(), payload.ProductID, payload.VariantKey); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store.Snapshot()))
	}
}

// CartSetQuantity overwrites a line's quantity. Values below one are stored as one.
func CartSetQuantity(carts CartStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.SetQuantity(r.Context(), payload.ProductID, payload.VariantKey, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store.Snapshot()))
	}
}

// CartRemoveItem drops a line identified by the product_id and variant_key
// query parameters.
func CartRemoveItem(carts CartStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.RequireQueryInt64(r, "product_id", 1, math.MaxInt64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantKey := strings.TrimSpace(r.URL.Query().Get("variant_key"))

		store, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Remove(r.Context(), productID, variantKey); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store.Snapshot()))
	}
}

// CartClear empties the cart.
func CartClear(carts CartStores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := ownerCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(store.Snapshot()))
	}
}

func quantityInCart(store *cart.Store, productID int64, variantKey string) int {
	variantKey = strings.TrimSpace(variantKey)
	for _, line := range store.Lines() {
		if line.ProductID == productID && line.VariantKey == variantKey {
			return line.Quantity
		}
	}
	return 0
}

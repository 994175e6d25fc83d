package facade

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

const (
	pathSiteSettings = "/api/site-settings/"
	pathRewardStatus = "/reward/status/"
	pathCoupons      = "/reward/coupons/"
	pathProduct      = "/product/products/%d/"
	pathCheckout     = "/order/checkout/"
)

type siteSettingsDTO struct {
	BrandPrice    decimal.NullDecimal `json:"brand_price"`
	CustomPrice   decimal.NullDecimal `json:"custom_price"`
	DeliveryFee   decimal.NullDecimal `json:"delivery_fee"`
	VATPercentage decimal.NullDecimal `json:"vat_percentage"`
	Address       string              `json:"address"`
	Country       string              `json:"country"`
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// SiteSettings fetches the store-wide pricing configuration.
func (c *Client) SiteSettings(ctx context.Context) (pricing.SiteSettings, error) {
	var dto siteSettingsDTO
	if err := c.call(ctx, http.MethodGet, pathSiteSettings, requestOptions{}, &dto); err != nil {
		return pricing.SiteSettings{}, err
	}
	return pricing.SiteSettings{
		VATPercentage: orZero(dto.VATPercentage),
		DeliveryFee:   orZero(dto.DeliveryFee),
		BrandPrice:    orZero(dto.BrandPrice),
		CustomPrice:   orZero(dto.CustomPrice),
		Address:       dto.Address,
		Country:       dto.Country,
	}, nil
}

type userRequest struct {
	UserID int64 `json:"user_id"`
}

// RewardBalance returns the buyer's loyalty points.
func (c *Client) RewardBalance(ctx context.Context, userID int64) (pricing.RewardBalance, error) {
	var dto struct {
		TotalPoints int64 `json:"total_points"`
		Redeemable  bool  `json:"redeemable"`
	}
	opts := requestOptions{body: userRequest{UserID: userID}}
	if err := c.call(ctx, http.MethodPost, pathRewardStatus, opts, &dto); err != nil {
		return pricing.RewardBalance{}, err
	}
	return pricing.RewardBalance{Points: dto.TotalPoints, Redeemable: dto.Redeemable}, nil
}

type couponDTO struct {
	Code       string          `json:"code"`
	Value      decimal.Decimal `json:"value"`
	IsRedeemed bool            `json:"is_redeemed"`
	ExpiresAt  *time.Time      `json:"expires_at"`
}

// Coupons lists every coupon issued to the user.
func (c *Client) Coupons(ctx context.Context, userID int64) ([]pricing.Coupon, error) {
	var dtos []couponDTO
	opts := requestOptions{body: userRequest{UserID: userID}}
	if err := c.call(ctx, http.MethodPost, pathCoupons, opts, &dtos); err != nil {
		return nil, err
	}
	coupons := make([]pricing.Coupon, 0, len(dtos))
	for _, dto := range dtos {
		coupons = append(coupons, pricing.Coupon{
			Code:      dto.Code,
			Value:     dto.Value,
			Redeemed:  dto.IsRedeemed,
			ExpiresAt: dto.ExpiresAt,
		})
	}
	return coupons, nil
}

// Coupon looks up one of the user's coupons by code, ignoring case.
func (c *Client) Coupon(ctx context.Context, userID int64, code string) (*pricing.Coupon, error) {
	code = strings.TrimSpace(code)
	coupons, err := c.Coupons(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range coupons {
		if strings.EqualFold(coupons[i].Code, code) {
			return &coupons[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found").
		WithDetails(map[string]any{"coupon_code": code})
}

// Product is the subset of the backend product used for stock checks.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (c *Client) Product(ctx context.Context, productID int64) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf(pathProduct, productID), requestOptions{}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// EnsureStock fails with a stock error when fewer than quantity units remain.
func (c *Client) EnsureStock(ctx context.Context, productID int64, quantity int) error {
	product, err := c.Product(ctx, productID)
	if err != nil {
		return err
	}
	if product.Stock < quantity {
		return pkgerrors.New(pkgerrors.CodeStock, fmt.Sprintf("only %d of %s left in stock", max(product.Stock, 0), product.Name)).
			WithDetails(map[string]any{
				"product_id": productID,
				"available":  product.Stock,
				"requested":  quantity,
			})
	}
	return nil
}

// OrderItem is one line of a submitted order.
type OrderItem struct {
	ProductID    int64           `json:"id"`
	Quantity     int             `json:"quantity"`
	SelectedSize string          `json:"selected_size,omitempty"`
	Price        decimal.Decimal `json:"price"`
}

// OrderRequest is the body of POST /order/checkout/.
type OrderRequest struct {
	UserID          int64           `json:"user_id,omitempty"`
	FullName        string          `json:"full_name"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	Address         string          `json:"address"`
	City            string          `json:"city"`
	PostalCode      string          `json:"postal_code"`
	Country         string          `json:"country"`
	OrderType       string          `json:"order_type"`
	PaymentMethod   string          `json:"payment_method"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	RewardApplied   decimal.Decimal `json:"reward_applied"`
	BrandLogoQty    int             `json:"brand_logo_qty,omitempty"`
	CustomDesignQty int             `json:"custom_design_qty,omitempty"`
	Items           []OrderItem     `json:"items"`
}

// OrderAcceptance is the backend's answer to a successful submission.
type OrderAcceptance struct {
	OrderID    string
	PaymentURL string
}

type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if raw == "null" {
		raw = ""
	}
	*f = flexibleID(raw)
	return nil
}

// SubmitOrder posts the order. idempotencyKey is forwarded so a replayed
// submission does not create a second order.
func (c *Client) SubmitOrder(ctx context.Context, idempotencyKey string, order OrderRequest) (*OrderAcceptance, error) {
	var dto struct {
		OrderID       flexibleID `json:"order_id"`
		PaymentURL    string     `json:"payment_url"`
		LegacyPayment string     `json:"paymentUrl"`
	}
	opts := requestOptions{
		body:    order,
		headers: map[string]string{"Idempotency-Key": idempotencyKey},
	}
	if err := c.call(ctx, http.MethodPost, pathCheckout, opts, &dto); err != nil {
		return nil, err
	}
	if dto.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend accepted order without an id")
	}
	paymentURL := dto.PaymentURL
	if paymentURL == "" {
		paymentURL = dto.LegacyPayment
	}
	return &OrderAcceptance{OrderID: string(dto.OrderID), PaymentURL: paymentURL}, nil
}

package payment

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

const (
	SandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"
	LiveProcessURL    = "https://www.payfast.co.za/eng/process"

	orderReferencePrefix = "ORDER_"
	defaultItemName      = "Ghanadude order"
)

var (
	errMerchantIDRequired  = errors.New("payment merchant id is required")
	errMerchantKeyRequired = errors.New("payment merchant key is required")
)

// Gateway builds signed redirects to the hosted payment page and recognises
// the URLs the page navigates back to.
type Gateway struct {
	merchantID  string
	merchantKey string
	passphrase  string
	processURL  string
	returnURL   string
	cancelURL   string
	notifyURL   string
}

// NewGateway validates merchant credentials and picks the sandbox or live endpoint.
func NewGateway(ctx context.Context, cfg config.PaymentConfig, logg *logger.Logger) (*Gateway, error) {
	merchantID := strings.TrimSpace(cfg.MerchantID)
	if merchantID == "" {
		return nil, errMerchantIDRequired
	}
	merchantKey := strings.TrimSpace(cfg.MerchantKey)
	if merchantKey == "" {
		return nil, errMerchantKeyRequired
	}

	processURL := LiveProcessURL
	mode := "live"
	if cfg.Sandbox {
		processURL = SandboxProcessURL
		mode = "sandbox"
	}
	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("payment gateway initialized (%s)", mode))
	}

	return &Gateway{
		merchantID:  merchantID,
		merchantKey: merchantKey,
		passphrase:  strings.TrimSpace(cfg.Passphrase),
		processURL:  processURL,
		returnURL:   strings.TrimSpace(cfg.ReturnURL),
		cancelURL:   strings.TrimSpace(cfg.CancelURL),
		notifyURL:   strings.TrimSpace(cfg.NotifyURL),
	}, nil
}

// Buyer identifies who is paying.
type Buyer struct {
	FirstName string
	Email     string
	UserID    string
}

// Redirect is a ready-to-open payment page URL.
type Redirect struct {
	URL       string
	Reference string
	Signature string
}

// BuildRedirect signs the payment fields for orderID and returns the process URL.
func (g *Gateway) BuildRedirect(orderID string, amount decimal.Decimal, buyer Buyer, itemName string) (*Redirect, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.Field("order_id", "order id is required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodePayment, "payment amount must be positive")
	}
	if strings.TrimSpace(itemName) == "" {
		itemName = defaultItemName
	}

	reference := orderReferencePrefix + orderID
	fields := map[string]string{
		"merchant_id":   g.merchantID,
		"merchant_key":  g.merchantKey,
		"return_url":    g.returnURL,
		"cancel_url":    g.cancelURL,
		"notify_url":    g.notifyURL,
		"name_first":    buyer.FirstName,
		"email_address": buyer.Email,
		"amount":        amount.StringFixed(2),
		"item_name":     itemName,
		"custom_str1":   buyer.UserID,
		"m_payment_id":  reference,
	}
	signature := Sign(fields, g.passphrase)

	query := encodeSorted(fields)
	if query != "" {
		query += "&"
	}
	query += "signature=" + signature

	return &Redirect{
		URL:       g.processURL + "?" + query,
		Reference: reference,
		Signature: signature,
	}, nil
}

// Sign computes the md5 signature over the non-empty fields in key order,
// followed by the passphrase when one is configured.
func Sign(fields map[string]string, passphrase string) string {
	payload := encodeSorted(fields)
	if passphrase = strings.TrimSpace(passphrase); passphrase != "" {
		payload += "&passphrase=" + url.QueryEscape(passphrase)
	}
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func encodeSorted(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+url.QueryEscape(strings.TrimSpace(fields[k])))
	}
	return strings.Join(parts, "&")
}

// OrderIDFromReference strips the ORDER_ prefix from an m_payment_id.
func OrderIDFromReference(reference string) (string, bool) {
	id, ok := strings.CutPrefix(strings.TrimSpace(reference), orderReferencePrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

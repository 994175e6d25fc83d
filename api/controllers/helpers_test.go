package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ghanadude-checkout/api/middleware"
	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/internal/checkout"
	"github.com/angelmondragon/ghanadude-checkout/internal/facade"
	"github.com/angelmondragon/ghanadude-checkout/internal/payment"
	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

const (
	testOwner     = "device:phone-1"
	testReturnURL = "https://ghanadude.co.za/checkout/return"
	testCancelURL = "https://ghanadude.co.za/checkout/cancel"
)

type stubBackend struct {
	mu        sync.Mutex
	release   chan struct{}
	accept    *facade.OrderAcceptance
	submitErr error
	stockErr  error
	stockAsk  []int
	balance   pricing.RewardBalance
	coupons   []pricing.Coupon
}

func newStubBackend() *stubBackend {
	return &stubBackend{accept: &facade.OrderAcceptance{OrderID: "1001"}}
}

func (b *stubBackend) SiteSettings(context.Context) (pricing.SiteSettings, error) {
	return pricing.SiteSettings{
		VATPercentage: decimal.NewFromInt(15),
		DeliveryFee:   decimal.NewFromInt(100),
		Country:       "South Africa",
	}, nil
}

func (b *stubBackend) RewardBalance(context.Context, int64) (pricing.RewardBalance, error) {
	return b.balance, nil
}

func (b *stubBackend) Coupons(context.Context, int64) ([]pricing.Coupon, error) {
	return b.coupons, nil
}

func (b *stubBackend) Coupon(_ context.Context, _ int64, code string) (*pricing.Coupon, error) {
	for i := range b.coupons {
		if strings.EqualFold(b.coupons[i].Code, code) {
			c := b.coupons[i]
			return &c, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

func (b *stubBackend) EnsureStock(_ context.Context, _ int64, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stockAsk = append(b.stockAsk, quantity)
	return b.stockErr
}

func (b *stubBackend) SubmitOrder(context.Context, string, facade.OrderRequest) (*facade.OrderAcceptance, error) {
	b.mu.Lock()
	release, accept, err := b.release, b.accept, b.submitErr
	b.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return accept, nil
}

type fixture struct {
	carts    *cart.Manager
	sessions *checkout.Registry
	backend  *stubBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	carts, err := cart.NewManager(cart.NewMemoryPersister(), cart.Options{})
	require.NoError(t, err)

	gateway, err := payment.NewGateway(context.Background(), config.PaymentConfig{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Sandbox:     true,
		ReturnURL:   testReturnURL,
		CancelURL:   testCancelURL,
	}, nil)
	require.NoError(t, err)

	backend := newStubBackend()
	sessions, err := checkout.NewRegistry(carts, checkout.Dependencies{
		Backend: backend,
		Gateway: gateway,
	}, checkout.Settings{SubmitTimeout: time.Second})
	require.NoError(t, err)

	return &fixture{carts: carts, sessions: sessions, backend: backend}
}

func (f *fixture) seedCart(t *testing.T) {
	t.Helper()
	store, err := f.carts.Store(context.Background(), testOwner)
	require.NoError(t, err)
	require.NoError(t, store.AddOrIncrement(context.Background(), 1, "M", decimal.NewFromInt(100), 2, cart.Meta{DisplayName: "Kente Tee"}))
}

func ownerRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.WithOwner(req.Context(), testOwner))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

// decodeData unwraps the success envelope into dest.
func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body), resp.Body.String())
	return body
}

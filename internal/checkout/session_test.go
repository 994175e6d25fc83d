package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/internal/facade"
	"github.com/angelmondragon/ghanadude-checkout/internal/payment"
	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

type fakeBackend struct {
	mu            sync.Mutex
	settings      pricing.SiteSettings
	settingsCalls int
	balance       pricing.RewardBalance
	coupons       map[string]*pricing.Coupon
	stockErr      error
	stockCalls    int
	release       chan struct{}
	accept        *facade.OrderAcceptance
	submitErr     error
	submitted     []facade.OrderRequest
	keys          []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		settings: pricing.SiteSettings{
			VATPercentage: decimal.NewFromInt(15),
			DeliveryFee:   decimal.NewFromInt(100),
			Country:       "South Africa",
		},
		accept: &facade.OrderAcceptance{OrderID: "1001"},
	}
}

func (b *fakeBackend) SiteSettings(context.Context) (pricing.SiteSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settingsCalls++
	return b.settings, nil
}

func (b *fakeBackend) RewardBalance(context.Context, int64) (pricing.RewardBalance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

func (b *fakeBackend) Coupon(_ context.Context, _ int64, code string) (*pricing.Coupon, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.coupons[strings.ToUpper(code)]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

func (b *fakeBackend) EnsureStock(context.Context, int64, int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stockCalls++
	return b.stockErr
}

func (b *fakeBackend) SubmitOrder(_ context.Context, key string, order facade.OrderRequest) (*facade.OrderAcceptance, error) {
	b.mu.Lock()
	b.keys = append(b.keys, key)
	b.submitted = append(b.submitted, order)
	release := b.release
	accept, err := b.accept, b.submitErr
	b.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return accept, nil
}

func (b *fakeBackend) submitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submitted)
}

type countingCart struct {
	*cart.Store
	clears atomic.Int32
}

func (c *countingCart) Clear(ctx context.Context) error {
	c.clears.Add(1)
	return c.Store.Clear(ctx)
}

func newCart(t *testing.T, owner string) *countingCart {
	t.Helper()
	ctx := context.Background()
	store, err := cart.Open(ctx, owner, cart.NewMemoryPersister(), cart.Options{})
	require.NoError(t, err)
	require.NoError(t, store.AddOrIncrement(ctx, 1, "M", decimal.NewFromInt(100), 2, cart.Meta{DisplayName: "Kente Tee"}))
	return &countingCart{Store: store}
}

func newSession(t *testing.T, c CartStore, backend Backend, gateway Gateway) *Session {
	t.Helper()
	sess, err := NewSession(Dependencies{Cart: c, Backend: backend, Gateway: gateway}, Settings{SubmitTimeout: time.Second})
	require.NoError(t, err)
	return sess
}

func validForm() ShippingForm {
	return ShippingForm{
		FullName:   "Kwame Mensah",
		Phone:      "0821234567",
		Address:    "12 Long Street",
		City:       "Cape Town",
		PostalCode: "8001",
		Country:    "South Africa",
		Email:      "kwame@example.com",
	}
}

func deliveryOpts(method enums.PaymentMethod) Options {
	return Options{OrderType: enums.OrderTypeDelivery, PaymentMethod: method}
}

func waitAccepted(t *testing.T, sub *Submission) *Acceptance {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	acc, err := sub.Wait(ctx)
	require.NoError(t, err)
	return acc
}

func TestNewSession_RequiresCollaborators(t *testing.T) {
	_, err := NewSession(Dependencies{Backend: newFakeBackend()}, Settings{})
	require.Error(t, err)
	_, err = NewSession(Dependencies{Cart: newCart(t, "user:1")}, Settings{})
	require.Error(t, err)
}

func TestSubmit_AcceptedAwaitsPayment(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.accept = &facade.OrderAcceptance{OrderID: "1001", PaymentURL: "https://pay.example/1001"}
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodCard))
	require.NoError(t, err)
	acc := waitAccepted(t, sub)

	assert.Equal(t, "1001", acc.OrderID)
	assert.Equal(t, "https://pay.example/1001", acc.Redirect.URL)

	status := sess.Status()
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, status.State)
	assert.Equal(t, "1001", status.OrderID)
	assert.NoError(t, status.Err)

	require.Len(t, backend.submitted, 1)
	order := backend.submitted[0]
	assert.Equal(t, int64(42), order.UserID)
	assert.Equal(t, "delivery", order.OrderType)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(330)))
	assert.True(t, order.VATAmount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, sub.Draft().ID, backend.keys[0])
	require.Len(t, order.Items, 1)
	assert.Equal(t, "M", order.Items[0].SelectedSize)
}

func TestSubmit_AbroadShippingKeepsSiteDeliveryFee(t *testing.T) {
	backend := newFakeBackend()
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	form := validForm()
	form.Country = "Ghana"
	sub, err := sess.Submit(context.Background(), form, deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)

	totals := sub.Draft().Totals
	assert.True(t, totals.DeliveryFee.Equal(decimal.NewFromInt(100)), "delivery fee %s", totals.DeliveryFee)
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(330)), "total %s", totals.Total)
}

func TestSubmit_BuildsGatewayRedirectForCard(t *testing.T) {
	gateway, err := payment.NewGateway(context.Background(), config.PaymentConfig{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Sandbox:     true,
		ReturnURL:   "https://shop.example/payment/return",
		CancelURL:   "https://shop.example/payment/cancel",
	}, nil)
	require.NoError(t, err)

	sess := newSession(t, newCart(t, "user:42"), newFakeBackend(), gateway)
	sub, err := sess.Submit(context.Background(), validForm(), deliveryOpts(enums.PaymentMethodCard))
	require.NoError(t, err)
	acc := waitAccepted(t, sub)

	require.NotNil(t, acc.Redirect)
	assert.True(t, strings.HasPrefix(acc.Redirect.URL, payment.SandboxProcessURL+"?"))
	assert.Equal(t, "ORDER_1001", acc.Redirect.Reference)
	assert.Contains(t, acc.Redirect.URL, "amount=330.00")
}

func TestSubmit_NonCardPaymentHasNoRedirect(t *testing.T) {
	sess := newSession(t, newCart(t, "user:42"), newFakeBackend(), nil)
	sub, err := sess.Submit(context.Background(), validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	acc := waitAccepted(t, sub)

	assert.Nil(t, acc.Redirect)
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, sess.State())
}

func TestSubmit_ReentrancyReturnsInFlightSubmission(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	first, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateSubmitting, sess.State())

	second, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first.Draft(), second.Draft())

	close(backend.release)
	waitAccepted(t, first)

	third, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	assert.Same(t, first, third)
	assert.Equal(t, 1, backend.submitCount())
}

func TestSubmit_InvalidFormReturnsFieldErrorAndIdle(t *testing.T) {
	backend := newFakeBackend()
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	form := validForm()
	form.City = "   "
	form.Email = "nope"
	_, err := sess.Submit(context.Background(), form, deliveryOpts(enums.PaymentMethodCard))
	require.Error(t, err)
	assert.Equal(t, "city", pkgerrors.FieldOf(err))
	assert.Equal(t, enums.CheckoutStateIdle, sess.State())
	assert.Zero(t, backend.submitCount())
}

func TestSubmit_RejectsBadOptions(t *testing.T) {
	sess := newSession(t, newCart(t, "user:42"), newFakeBackend(), nil)

	_, err := sess.Submit(context.Background(), validForm(), Options{OrderType: "pickup", PaymentMethod: enums.PaymentMethodCard})
	assert.Equal(t, "order_type", pkgerrors.FieldOf(err))

	_, err = sess.Submit(context.Background(), validForm(), Options{OrderType: enums.OrderTypeCollection, PaymentMethod: "cash"})
	assert.Equal(t, "payment_method", pkgerrors.FieldOf(err))
	assert.Equal(t, enums.CheckoutStateIdle, sess.State())
}

func TestSubmit_EmptyCartIsRejected(t *testing.T) {
	c := newCart(t, "user:42")
	require.NoError(t, c.Store.Clear(context.Background()))
	sess := newSession(t, c, newFakeBackend(), nil)

	_, err := sess.Submit(context.Background(), validForm(), deliveryOpts(enums.PaymentMethodCard))
	assert.Equal(t, "cart", pkgerrors.FieldOf(err))
	assert.Equal(t, enums.CheckoutStateIdle, sess.State())
}

func TestSubmit_ServerRejectionKeepsServerMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.submitErr = facade.ParseResponseError(http.StatusBadRequest, []byte(`{"error":"Insufficient stock","product_id":1}`))
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	sub, err := sess.Submit(context.Background(), validForm(), deliveryOpts(enums.PaymentMethodCard))
	require.NoError(t, err)
	_, err = sub.Wait(context.Background())
	require.Error(t, err)

	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStock))
	assert.Equal(t, "Insufficient stock", pkgerrors.As(err).Message())
	status := sess.Status()
	assert.Equal(t, enums.CheckoutStateFailed, status.State)
	assert.Equal(t, err, status.Err)
}

func TestSubmit_NetworkFailureUsesGenericMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.submitErr = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection refused"), "backend request failed")
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	sub, err := sess.Submit(context.Background(), validForm(), deliveryOpts(enums.PaymentMethodCard))
	require.NoError(t, err)
	_, err = sub.Wait(context.Background())

	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, submissionFailedMessage, pkgerrors.As(err).Message())
	assert.Equal(t, enums.CheckoutStateFailed, sess.State())
}

func TestSubmit_ResubmitAfterFailureCreatesNewDraft(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.submitErr = pkgerrors.New(pkgerrors.CodeDependency, "down")
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	first, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	_, err = first.Wait(ctx)
	require.Error(t, err)

	backend.mu.Lock()
	backend.submitErr = nil
	backend.mu.Unlock()

	second, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, second)
	assert.NotEqual(t, first.Draft().ID, second.Draft().ID)
	assert.Equal(t, 2, backend.submitCount())
}

func TestSubmit_StockVerificationFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.stockErr = pkgerrors.New(pkgerrors.CodeStock, "only 1 of Kente Tee left in stock")
	sess, err := NewSession(Dependencies{Cart: newCart(t, "user:42"), Backend: backend}, Settings{VerifyStock: true})
	require.NoError(t, err)

	_, err = sess.Submit(context.Background(), validForm(), deliveryOpts(enums.PaymentMethodCard))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStock))
	assert.Equal(t, enums.CheckoutStateFailed, sess.State())
	assert.Equal(t, 1, backend.stockCalls)
	assert.Zero(t, backend.submitCount())
}

func TestSubmit_DraftIsIsolatedFromLaterCartChanges(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	c := newCart(t, "user:42")
	sess := newSession(t, c, backend, nil)

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	require.NoError(t, c.AddOrIncrement(ctx, 2, "", decimal.NewFromInt(50), 1, cart.Meta{}))
	require.NoError(t, c.AddOrIncrement(ctx, 1, "M", decimal.NewFromInt(100), 5, cart.Meta{}))
	close(backend.release)
	waitAccepted(t, sub)

	lines := sub.Draft().Lines
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 2, sub.Draft().Totals.ItemCount)
	require.Len(t, backend.submitted[0].Items, 1)

	status := sess.Status()
	require.NotNil(t, status.Draft)
	status.Draft.Lines[0].Quantity = 40
	assert.Equal(t, 2, sess.Status().Draft.Lines[0].Quantity)
}

func TestSubmit_CompletedSessionRejectsResubmit(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, newCart(t, "user:42"), newFakeBackend(), nil)
	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)
	require.NoError(t, sess.PaymentSucceeded(ctx))

	_, err = sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestPaymentSucceeded_ClearsCartExactlyOnce(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, "user:42")
	sess := newSession(t, c, newFakeBackend(), nil)

	require.Error(t, sess.PaymentSucceeded(ctx))
	assert.Zero(t, c.clears.Load())

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)
	assert.Zero(t, c.clears.Load())

	require.NoError(t, sess.PaymentSucceeded(ctx))
	require.NoError(t, sess.PaymentSucceeded(ctx))

	assert.Equal(t, int32(1), c.clears.Load())
	assert.Empty(t, c.Lines())
	assert.Equal(t, enums.CheckoutStateCompleted, sess.State())
}

func TestPaymentCancelled_KeepsCart(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, "user:42")
	before := c.Lines()
	sess := newSession(t, c, newFakeBackend(), nil)

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)
	require.NoError(t, sess.PaymentCancelled(ctx))

	assert.Equal(t, enums.CheckoutStateCancelled, sess.State())
	assert.Zero(t, c.clears.Load())
	assert.Equal(t, before, c.Lines())

	again, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	assert.NotSame(t, sub, again)
}

func TestPaymentFailed(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, "user:42")
	sess := newSession(t, c, newFakeBackend(), nil)

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)
	require.NoError(t, sess.PaymentFailed(ctx, "card declined"))

	status := sess.Status()
	assert.Equal(t, enums.CheckoutStateFailed, status.State)
	assert.True(t, pkgerrors.IsCode(status.Err, pkgerrors.CodePayment))
	assert.Zero(t, c.clears.Load())
	assert.True(t, pkgerrors.IsCode(sess.PaymentFailed(ctx, ""), pkgerrors.CodeStateConflict))
}

func TestHandleRedirect(t *testing.T) {
	ctx := context.Background()
	gateway, err := payment.NewGateway(ctx, config.PaymentConfig{
		MerchantID:  "m",
		MerchantKey: "k",
		ReturnURL:   "https://shop.example/payment/return",
		CancelURL:   "https://shop.example/payment/cancel",
	}, nil)
	require.NoError(t, err)
	c := newCart(t, "user:42")
	sess := newSession(t, c, newFakeBackend(), gateway)

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodCard))
	require.NoError(t, err)
	waitAccepted(t, sub)

	signal, err := sess.HandleRedirect(ctx, "https://www.payfast.co.za/eng/process")
	require.NoError(t, err)
	assert.Equal(t, payment.SignalNone, signal)
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, sess.State())

	signal, err = sess.HandleRedirect(ctx, "https://shop.example/payment/return?pf=1")
	require.NoError(t, err)
	assert.Equal(t, payment.SignalSuccess, signal)
	assert.Equal(t, enums.CheckoutStateCompleted, sess.State())
	assert.Equal(t, int32(1), c.clears.Load())
}

func TestAbandon_DiscardsInFlightResult(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	c := newCart(t, "user:42")
	sess := newSession(t, c, backend, nil)

	assert.False(t, sess.Abandon(ctx))

	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	require.True(t, sess.Abandon(ctx))
	assert.Equal(t, enums.CheckoutStateIdle, sess.State())

	close(backend.release)
	_, err = sub.Wait(ctx)
	require.ErrorIs(t, err, ErrSubmissionDiscarded)

	status := sess.Status()
	assert.Equal(t, enums.CheckoutStateIdle, status.State)
	assert.Empty(t, status.OrderID)
	assert.Nil(t, status.Draft)
	assert.Zero(t, c.clears.Load())

	backend.mu.Lock()
	backend.release = nil
	backend.mu.Unlock()
	next, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, next)
	assert.Equal(t, enums.CheckoutStateAwaitingPayment, sess.State())
}

func TestSubmission_WaitHonoursContext(t *testing.T) {
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	defer close(backend.release)
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	sub, err := sess.Submit(context.Background(), validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sub.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-sub.Done():
		t.Fatal("submission should still be in flight")
	default:
	}
}

func TestPreview_CachesSettingsAndClampsReward(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.balance = pricing.RewardBalance{Points: 5000, Redeemable: true}
	sess := newSession(t, newCart(t, "user:42"), backend, nil)

	quote, err := sess.Preview(ctx, Options{OrderType: enums.OrderTypeCollection, RewardRequested: decimal.NewFromInt(10000)})
	require.NoError(t, err)
	assert.True(t, quote.Totals.DeliveryFee.IsZero())
	assert.True(t, quote.Totals.RewardApplied.Equal(decimal.NewFromInt(230)))
	assert.True(t, quote.Totals.Total.IsZero())
	assert.True(t, quote.RewardAvailable.Equal(decimal.NewFromInt(5000)))

	quote, err = sess.Preview(ctx, Options{OrderType: enums.OrderTypeDelivery, RewardRequested: decimal.NewFromInt(30)})
	require.NoError(t, err)
	assert.True(t, quote.Totals.Total.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 1, backend.settingsCalls)
	assert.Equal(t, enums.CheckoutStateIdle, sess.State())
}

func TestPreview_AppliesCoupon(t *testing.T) {
	backend := newFakeBackend()
	backend.coupons = map[string]*pricing.Coupon{
		"WELCOME50": {Code: "WELCOME50", Value: decimal.NewFromInt(50)},
		"USED":      {Code: "USED", Value: decimal.NewFromInt(50), Redeemed: true},
	}
	sess := newSession(t, newCart(t, "user:42"), backend, nil)
	opts := Options{OrderType: enums.OrderTypeCollection, CouponCode: "welcome50"}

	quote, err := sess.Preview(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME50", quote.CouponCode)
	assert.True(t, quote.Totals.Discount.Equal(decimal.NewFromInt(50)))
	assert.True(t, quote.Totals.Total.Equal(decimal.NewFromInt(180)))

	opts.CouponCode = "used"
	_, err = sess.Preview(context.Background(), opts)
	assert.Equal(t, "coupon_code", pkgerrors.FieldOf(err))

	opts.CouponCode = "missing"
	_, err = sess.Preview(context.Background(), opts)
	assert.Equal(t, "coupon_code", pkgerrors.FieldOf(err))
}

func TestPreview_GuestsCannotUseCouponsOrRewards(t *testing.T) {
	backend := newFakeBackend()
	backend.balance = pricing.RewardBalance{Points: 100, Redeemable: true}
	sess := newSession(t, newCart(t, "device:abc"), backend, nil)

	_, err := sess.Preview(context.Background(), Options{OrderType: enums.OrderTypeCollection, CouponCode: "X"})
	assert.Equal(t, "coupon_code", pkgerrors.FieldOf(err))

	quote, err := sess.Preview(context.Background(), Options{OrderType: enums.OrderTypeCollection, RewardRequested: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.True(t, quote.Totals.RewardApplied.IsZero())
}

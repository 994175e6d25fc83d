package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/internal/facade"
	"github.com/angelmondragon/ghanadude-checkout/internal/payment"
	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	"github.com/angelmondragon/ghanadude-checkout/pkg/auth"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

const (
	defaultSubmitTimeout    = 30 * time.Second
	submissionFailedMessage = "order submission failed"
)

// ErrSubmissionDiscarded resolves a submission whose session was abandoned
// while the order was in flight.
var ErrSubmissionDiscarded = errors.New("checkout submission discarded")

// Backend is the subset of the remote data facade checkout depends on.
type Backend interface {
	SiteSettings(ctx context.Context) (pricing.SiteSettings, error)
	RewardBalance(ctx context.Context, userID int64) (pricing.RewardBalance, error)
	Coupon(ctx context.Context, userID int64, code string) (*pricing.Coupon, error)
	EnsureStock(ctx context.Context, productID int64, quantity int) error
	SubmitOrder(ctx context.Context, idempotencyKey string, order facade.OrderRequest) (*facade.OrderAcceptance, error)
}

// Gateway builds payment redirects and interprets the URLs they return to.
type Gateway interface {
	BuildRedirect(orderID string, amount decimal.Decimal, buyer payment.Buyer, itemName string) (*payment.Redirect, error)
	Classify(raw string) payment.Signal
}

// CartStore is the cart a session checks out. Refresh reloads lines written
// through other handles before they are priced.
type CartStore interface {
	Owner() string
	Refresh(ctx context.Context) error
	Lines() []cart.Line
	Clear(ctx context.Context) error
}

// Dependencies are a session's collaborators. Gateway, Recorder, Observer and
// Logger are optional.
type Dependencies struct {
	Cart     CartStore
	Backend  Backend
	Gateway  Gateway
	Recorder Recorder
	Observer Observer
	Logger   *logger.Logger
}

// Settings tune a session.
type Settings struct {
	SubmitTimeout time.Duration
	// PointValue is the currency value of one reward point. Zero means 1.00.
	PointValue  decimal.Decimal
	VerifyStock bool
	Now         func() time.Time
}

// PaymentRedirect is where the buyer must be sent to pay.
type PaymentRedirect struct {
	URL       string `json:"url"`
	Reference string `json:"reference,omitempty"`
}

// Quote is a priced view of the cart plus what fed into it.
type Quote struct {
	Totals          pricing.Totals        `json:"totals"`
	RewardBalance   pricing.RewardBalance `json:"reward_balance"`
	RewardAvailable decimal.Decimal       `json:"reward_available"`
	CouponCode      string                `json:"coupon_code,omitempty"`
}

// Status is a point-in-time copy of a session.
type Status struct {
	SessionID string
	State     enums.CheckoutState
	Draft     *OrderDraft
	OrderID   string
	Redirect  *PaymentRedirect
	Err       error
	UpdatedAt time.Time
}

// Session drives one buyer through validation, submission and payment.
type Session struct {
	id            string
	owner         string
	userID        int64
	cart          CartStore
	backend       Backend
	gateway       Gateway
	recorder      Recorder
	observer      Observer
	logg          *logger.Logger
	submitTimeout time.Duration
	pointValue    decimal.Decimal
	verifyStock   bool
	now           func() time.Time

	mu         sync.Mutex
	state      enums.CheckoutState
	generation uint64
	settings   *pricing.SiteSettings
	current    *Submission
	draft      *OrderDraft
	orderID    string
	redirect   *PaymentRedirect
	lastErr    error
	cartClear  bool
	updatedAt  time.Time
}

func NewSession(deps Dependencies, settings Settings) (*Session, error) {
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if settings.SubmitTimeout <= 0 {
		settings.SubmitTimeout = defaultSubmitTimeout
	}
	if settings.PointValue.IsZero() {
		settings.PointValue = decimal.NewFromInt(1)
	}
	if settings.Now == nil {
		settings.Now = func() time.Time { return time.Now().UTC() }
	}

	owner := deps.Cart.Owner()
	userID, _ := auth.UserIDFromOwner(owner)
	return &Session{
		id:            uuid.NewString(),
		owner:         owner,
		userID:        userID,
		cart:          deps.Cart,
		backend:       deps.Backend,
		gateway:       deps.Gateway,
		recorder:      deps.Recorder,
		observer:      deps.Observer,
		logg:          deps.Logger,
		submitTimeout: settings.SubmitTimeout,
		pointValue:    settings.PointValue,
		verifyStock:   settings.VerifyStock,
		now:           settings.Now,
		state:         enums.CheckoutStateIdle,
		updatedAt:     settings.Now(),
	}, nil
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }

func (s *Session) State() enums.CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status copies the session; the draft it carries is detached.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID: s.id,
		State:     s.state,
		Draft:     s.draft.clone(),
		OrderID:   s.orderID,
		Redirect:  s.redirect,
		Err:       s.lastErr,
		UpdatedAt: s.updatedAt,
	}
}

// Submit validates the form, snapshots the cart into an OrderDraft and sends
// it to the backend in the background. While an order is submitting or
// awaiting payment the existing submission is returned unchanged.
func (s *Session) Submit(ctx context.Context, form ShippingForm, opts Options) (*Submission, error) {
	s.mu.Lock()
	switch {
	case s.state.InFlight():
		sub := s.current
		s.mu.Unlock()
		return sub, nil
	case s.state == enums.CheckoutStateCompleted:
		s.mu.Unlock()
		return nil, stateConflict(enums.CheckoutStateCompleted, "checkout already completed")
	case s.state == enums.CheckoutStateValidating:
		s.mu.Unlock()
		return nil, stateConflict(enums.CheckoutStateValidating, "checkout is already being validated")
	}
	generation := s.generation
	s.transitionLocked(ctx, enums.CheckoutStateValidating, nil)
	s.mu.Unlock()

	draft, err := s.prepare(ctx, form, opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return nil, ErrSubmissionDiscarded
	}
	if err != nil {
		next := enums.CheckoutStateFailed
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			next = enums.CheckoutStateIdle
		}
		s.transitionLocked(ctx, next, err)
		return nil, err
	}

	sub := newSubmission(draft, generation, s.now())
	s.current = sub
	s.draft = draft
	s.orderID = ""
	s.redirect = nil
	s.cartClear = false
	s.transitionLocked(ctx, enums.CheckoutStateSubmitting, nil)

	go s.send(context.WithoutCancel(ctx), sub)
	return sub, nil
}

// Preview prices the current cart with the session's cached site settings.
// It never changes the session state.
func (s *Session) Preview(ctx context.Context, opts Options) (*Quote, error) {
	opts = opts.normalized()
	if !opts.OrderType.IsValid() {
		return nil, pkgerrors.Field("order_type", "order type must be delivery or collection")
	}
	if err := s.cart.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.quote(ctx, s.cart.Lines(), opts)
}

// Abandon returns a validating or submitting session to idle. Any in-flight
// order still completes on the backend but its result is discarded.
func (s *Session) Abandon(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != enums.CheckoutStateValidating && s.state != enums.CheckoutStateSubmitting {
		return false
	}
	s.generation++
	s.current = nil
	s.draft = nil
	s.transitionLocked(ctx, enums.CheckoutStateIdle, nil)
	return true
}

// PaymentSucceeded completes the checkout and clears the cart. Repeating the
// signal after completion is harmless; the cart is cleared once.
func (s *Session) PaymentSucceeded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case enums.CheckoutStateAwaitingPayment:
		s.transitionLocked(ctx, enums.CheckoutStateCompleted, nil)
	case enums.CheckoutStateCompleted:
	default:
		return stateConflict(s.state, "no payment is pending")
	}
	if s.cartClear {
		return nil
	}
	if err := s.cart.Clear(ctx); err != nil {
		s.logError(ctx, "checkout.cart_clear.failed", err)
		return err
	}
	s.cartClear = true
	return nil
}

// finished reports a completed session whose cart has been cleared; only
// then may a fresh session replace it.
func (s *Session) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == enums.CheckoutStateCompleted && s.cartClear
}

// PaymentCancelled leaves the cart untouched so the buyer can try again.
func (s *Session) PaymentCancelled(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case enums.CheckoutStateAwaitingPayment:
		s.transitionLocked(ctx, enums.CheckoutStateCancelled, nil)
		return nil
	case enums.CheckoutStateCancelled:
		return nil
	}
	return stateConflict(s.state, "no payment is pending")
}

// PaymentFailed records a gateway failure. The cart is kept.
func (s *Session) PaymentFailed(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != enums.CheckoutStateAwaitingPayment {
		return stateConflict(s.state, "no payment is pending")
	}
	if reason == "" {
		reason = "payment failed"
	}
	s.transitionLocked(ctx, enums.CheckoutStateFailed, pkgerrors.New(pkgerrors.CodePayment, reason))
	return nil
}

// HandleRedirect interprets a URL the payment page navigated to and applies
// the matching signal. Unrelated URLs are ignored.
func (s *Session) HandleRedirect(ctx context.Context, rawURL string) (payment.Signal, error) {
	if s.gateway == nil {
		return payment.SignalNone, nil
	}
	signal := s.gateway.Classify(rawURL)
	switch signal {
	case payment.SignalSuccess:
		return signal, s.PaymentSucceeded(ctx)
	case payment.SignalCancel:
		return signal, s.PaymentCancelled(ctx)
	}
	return signal, nil
}

func (s *Session) prepare(ctx context.Context, form ShippingForm, opts Options) (*OrderDraft, error) {
	form = form.Normalized()
	if err := form.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	if !opts.OrderType.IsValid() {
		return nil, pkgerrors.Field("order_type", "order type must be delivery or collection")
	}
	if !opts.PaymentMethod.IsValid() {
		return nil, pkgerrors.Field("payment_method", "payment method must be card, delivery or eft")
	}

	if err := s.cart.Refresh(ctx); err != nil {
		return nil, err
	}
	lines := s.cart.Lines()
	if err := pricing.CheckoutAllowed(lines); err != nil {
		return nil, err
	}
	if s.verifyStock {
		for _, line := range lines {
			if err := s.backend.EnsureStock(ctx, line.ProductID, line.Quantity); err != nil {
				return nil, err
			}
		}
	}

	quote, err := s.quote(ctx, lines, opts)
	if err != nil {
		return nil, err
	}

	return &OrderDraft{
		ID:            uuid.NewString(),
		Owner:         s.owner,
		UserID:        s.userID,
		Lines:         lines,
		Form:          form,
		OrderType:     opts.OrderType,
		PaymentMethod: opts.PaymentMethod,
		CouponCode:    quote.CouponCode,
		Customization: opts.Customization,
		Totals:        quote.Totals,
		CreatedAt:     s.now(),
	}, nil
}

func (s *Session) quote(ctx context.Context, lines []cart.Line, opts Options) (*Quote, error) {
	inputs, err := s.loadPricingInputs(ctx, opts.CouponCode)
	if err != nil {
		return nil, err
	}

	in := pricing.Input{
		Lines:         lines,
		Settings:      inputs.settings,
		OrderType:     opts.OrderType,
		Customization: opts.Customization,
		Coupon:        inputs.coupon,
	}
	base, err := pricing.Compute(in)
	if err != nil {
		return nil, err
	}
	available := inputs.balance.Value(s.pointValue)
	in.RewardApplied = pricing.ClampReward(opts.RewardRequested, available, base.RewardCeiling())
	totals, err := pricing.Compute(in)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Totals:          totals,
		RewardBalance:   inputs.balance,
		RewardAvailable: available,
	}
	if inputs.coupon != nil {
		quote.CouponCode = inputs.coupon.Code
	}
	return quote, nil
}

func (s *Session) send(ctx context.Context, sub *Submission) {
	reqCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	var acc *Acceptance
	accepted, err := s.backend.SubmitOrder(reqCtx, sub.draft.ID, sub.draft.orderRequest())
	if err == nil {
		acc, err = s.acceptance(sub.draft, accepted)
	}
	if err != nil {
		err = submissionError(err)
	}
	s.finish(ctx, sub, acc, err)
}

func (s *Session) acceptance(draft *OrderDraft, accepted *facade.OrderAcceptance) (*Acceptance, error) {
	acc := &Acceptance{OrderID: accepted.OrderID}
	switch {
	case accepted.PaymentURL != "":
		acc.Redirect = &PaymentRedirect{URL: accepted.PaymentURL}
	case draft.PaymentMethod.RequiresRedirect() && draft.Totals.Total.IsPositive():
		if s.gateway == nil {
			return nil, pkgerrors.New(pkgerrors.CodePayment, "payment gateway not configured")
		}
		buyer := payment.Buyer{FirstName: draft.Form.FirstName(), Email: draft.Form.Email}
		if draft.UserID > 0 {
			buyer.UserID = strconv.FormatInt(draft.UserID, 10)
		}
		redirect, err := s.gateway.BuildRedirect(accepted.OrderID, draft.Totals.Total, buyer, draft.itemName())
		if err != nil {
			return nil, err
		}
		acc.Redirect = &PaymentRedirect{URL: redirect.URL, Reference: redirect.Reference}
	}
	return acc, nil
}

func (s *Session) finish(ctx context.Context, sub *Submission, acc *Acceptance, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.now().Sub(sub.started)
	if sub.generation != s.generation {
		sub.resolve(nil, ErrSubmissionDiscarded)
		s.observeSubmission(ctx, "discarded", elapsed)
		return
	}
	if err != nil {
		sub.resolve(nil, err)
		s.observeSubmission(ctx, "rejected", elapsed)
		s.transitionLocked(ctx, enums.CheckoutStateFailed, err)
		return
	}

	s.orderID = acc.OrderID
	s.redirect = acc.Redirect
	sub.resolve(acc, nil)
	s.observeSubmission(ctx, "accepted", elapsed)
	s.transitionLocked(ctx, enums.CheckoutStateAwaitingPayment, nil)
}

// submissionError keeps the backend's own wording when it sent one and falls
// back to a generic message otherwise.
func submissionError(err error) error {
	if _, ok := facade.ServerMessage(err); ok {
		return err
	}
	code := pkgerrors.CodeDependency
	if typed := pkgerrors.As(err); typed != nil {
		if typed.Code() == pkgerrors.CodePayment {
			return err
		}
		code = typed.Code()
	}
	return pkgerrors.Wrap(code, err, submissionFailedMessage)
}

func stateConflict(state enums.CheckoutState, message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"state": state.String()})
}

func (s *Session) transitionLocked(ctx context.Context, to enums.CheckoutState, cause error) {
	from := s.state
	s.state = to
	s.updatedAt = s.now()
	switch to {
	case enums.CheckoutStateFailed:
		s.lastErr = cause
	case enums.CheckoutStateIdle:
		s.lastErr = cause
	default:
		s.lastErr = nil
	}

	ctx = context.WithoutCancel(ctx)
	if s.observer != nil {
		s.observer.Transition(ctx, s.id, s.owner, from, to, cause)
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, s.recordLocked()); err != nil {
			s.logError(ctx, "checkout.record.failed", err)
		}
	}
}

func (s *Session) recordLocked() Record {
	rec := Record{
		SessionID: s.id,
		Owner:     s.owner,
		State:     s.state,
		OrderID:   s.orderID,
		Draft:     s.draft,
	}
	if s.draft != nil {
		rec.DraftID = s.draft.ID
		rec.Total = s.draft.Totals.Total
		rec.RewardApplied = s.draft.Totals.RewardApplied
	}
	if s.redirect != nil {
		rec.PaymentURL = s.redirect.URL
	}
	if s.lastErr != nil {
		rec.FailureReason = s.lastErr.Error()
	}
	return rec
}

func (s *Session) observeSubmission(ctx context.Context, outcome string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.Submission(ctx, outcome, elapsed)
	}
}

func (s *Session) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithSessionID(s.logg.WithOwner(ctx, s.owner), s.id)
	s.logg.Error(ctx, msg, err)
}

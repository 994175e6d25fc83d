package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/api/middleware"
	"github.com/angelmondragon/ghanadude-checkout/api/responses"
	"github.com/angelmondragon/ghanadude-checkout/api/validators"
	"github.com/angelmondragon/ghanadude-checkout/internal/checkout"
	"github.com/angelmondragon/ghanadude-checkout/internal/payment"
	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/types"
)

const maxSubmitWaitSeconds = 60

// CheckoutSessions hands out the per-owner checkout session.
type CheckoutSessions interface {
	Session(ctx context.Context, owner string) (*checkout.Session, error)
	Lookup(owner string) (*checkout.Session, bool)
}

type optionsPayload struct {
	OrderType       string          `json:"order_type"`
	PaymentMethod   string          `json:"payment_method"`
	CouponCode      string          `json:"coupon_code" validate:"max=64"`
	RewardRequested decimal.Decimal `json:"reward_requested" validate:"gte=0"`
	BrandLogoQty    int             `json:"brand_logo_qty" validate:"min=0,max=1000"`
	CustomDesignQty int             `json:"custom_design_qty" validate:"min=0,max=1000"`
}

// options leaves unknown order types and payment methods empty; the session
// rejects them with a field error.
func (p optionsPayload) options() checkout.Options {
	orderType, _ := enums.ParseOrderType(p.OrderType)
	paymentMethod, _ := enums.ParsePaymentMethod(p.PaymentMethod)
	return checkout.Options{
		OrderType:       orderType,
		PaymentMethod:   paymentMethod,
		CouponCode:      validators.SanitizeString(p.CouponCode, 64),
		RewardRequested: p.RewardRequested,
		Customization: pricing.Customization{
			BrandLogoQty:    p.BrandLogoQty,
			CustomDesignQty: p.CustomDesignQty,
		},
	}
}

type submitRequest struct {
	optionsPayload
	Shipping checkout.ShippingForm `json:"shipping"`
}

type navigationRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

type failureRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type checkoutStatusResponse struct {
	SessionID string                    `json:"session_id"`
	State     enums.CheckoutState       `json:"state"`
	DraftID   string                    `json:"draft_id,omitempty"`
	Totals    *pricing.Totals           `json:"totals,omitempty"`
	OrderID   string                    `json:"order_id,omitempty"`
	Payment   *checkout.PaymentRedirect `json:"payment,omitempty"`
	Error     *types.APIError           `json:"error,omitempty"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

func newCheckoutStatusResponse(status checkout.Status) checkoutStatusResponse {
	resp := checkoutStatusResponse{
		SessionID: status.SessionID,
		State:     status.State,
		OrderID:   status.OrderID,
		Payment:   status.Redirect,
		UpdatedAt: status.UpdatedAt,
	}
	if status.Draft != nil {
		totals := status.Draft.Totals
		resp.DraftID = status.Draft.ID
		resp.Totals = &totals
	}
	if status.Err != nil {
		apiErr, _ := responses.PublicError(status.Err)
		resp.Error = &apiErr
	}
	return resp
}

type signalResponse struct {
	Signal payment.Signal         `json:"signal"`
	Status checkoutStatusResponse `json:"status"`
}

// CheckoutPreview prices the cart without starting a checkout.
func CheckoutPreview(sessions CheckoutSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload optionsPayload
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := sessions.Session(r.Context(), middleware.OwnerFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := sess.Preview(r.Context(), payload.options())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CheckoutSubmit starts (or rejoins) the owner's checkout. It waits up to
// wait for the backend's answer so most clients get the payment redirect in
// one round trip; slower submissions answer 202 and are polled via
// CheckoutStatus. ?wait_seconds overrides the wait.
func CheckoutSubmit(sessions CheckoutSessions, wait time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload submitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		waitSeconds, err := validators.ParseQueryInt(r, "wait_seconds", int(wait/time.Second), 0, maxSubmitWaitSeconds)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, err := sessions.Session(r.Context(), middleware.OwnerFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := sess.Submit(r.Context(), payload.Shipping, payload.options())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if waitSeconds > 0 {
			waitCtx, cancel := context.WithTimeout(r.Context(), time.Duration(waitSeconds)*time.Second)
			_, err = sub.Wait(waitCtx)
			cancel()
			switch {
			case err == nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			case errors.Is(err, checkout.ErrSubmissionDiscarded):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout was abandoned"))
				return
			default:
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		status := sess.Status()
		code := http.StatusCreated
		if status.State == enums.CheckoutStateSubmitting {
			code = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, code, newCheckoutStatusResponse(status))
	}
}

// CheckoutStatus reports the owner's checkout, starting an idle one if none exists.
func CheckoutStatus(sessions CheckoutSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := middleware.OwnerFromContext(r.Context())
		sess, ok := sessions.Lookup(owner)
		if !ok {
			var err error
			if sess, err = sessions.Session(r.Context(), owner); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, newCheckoutStatusResponse(sess.Status()))
	}
}

// CheckoutAbandon drops a checkout that is still validating or submitting.
func CheckoutAbandon(sessions CheckoutSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := currentSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		abandoned := sess.Abandon(r.Context())
		responses.WriteSuccess(w, map[string]any{
			"abandoned": abandoned,
			"status":    newCheckoutStatusResponse(sess.Status()),
		})
	}
}

// PaymentNavigation feeds a URL the payment page navigated to into the session.
func PaymentNavigation(sessions CheckoutSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload navigationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := currentSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		signal, err := sess.HandleRedirect(r.Context(), payload.URL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, signalResponse{Signal: signal, Status: newCheckoutStatusResponse(sess.Status())})
	}
}

// PaymentSuccess confirms payment, completing the checkout.
func PaymentSuccess(sessions CheckoutSessions, logg *logger.Logger) http.HandlerFunc {
	return paymentSignal(sessions, logg, payment.SignalSuccess, func(ctx context.Context, sess *checkout.Session) error {
		return sess.PaymentSucceeded(ctx)
	})
}

// PaymentCancel records that the buyer backed out of the payment page.
func PaymentCancel(sessions CheckoutSessions, logg *logger.Logger) http.HandlerFunc {
	return paymentSignal(sessions, logg, payment.SignalCancel, func(ctx context.Context, sess *checkout.Session) error {
		return sess.PaymentCancelled(ctx)
	})
}

// PaymentFailure records a gateway failure with an optional reason.
func PaymentFailure(sessions CheckoutSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload failureRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := currentSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sess.PaymentFailed(r.Context(), strings.TrimSpace(payload.Reason)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutStatusResponse(sess.Status()))
	}
}

func paymentSignal(sessions CheckoutSessions, logg *logger.Logger, signal payment.Signal, apply func(context.Context, *checkout.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := currentSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := apply(r.Context(), sess); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, signalResponse{Signal: signal, Status: newCheckoutStatusResponse(sess.Status())})
	}
}

func currentSession(r *http.Request, sessions CheckoutSessions) (*checkout.Session, error) {
	sess, ok := sessions.Lookup(middleware.OwnerFromContext(r.Context()))
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in progress").
			WithDetails(map[string]any{"state": enums.CheckoutStateIdle.String()})
	}
	return sess, nil
}

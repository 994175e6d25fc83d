package enums

import "fmt"

// CheckoutState is the lifecycle position of a checkout session.
type CheckoutState string

const (
	CheckoutStateIdle            CheckoutState = "idle"
	CheckoutStateValidating      CheckoutState = "validating"
	CheckoutStateSubmitting      CheckoutState = "submitting"
	CheckoutStateAwaitingPayment CheckoutState = "awaiting_payment"
	CheckoutStateCompleted       CheckoutState = "completed"
	CheckoutStateFailed          CheckoutState = "failed"
	CheckoutStateCancelled       CheckoutState = "cancelled"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateIdle,
	CheckoutStateValidating,
	CheckoutStateSubmitting,
	CheckoutStateAwaitingPayment,
	CheckoutStateCompleted,
	CheckoutStateFailed,
	CheckoutStateCancelled,
}

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutState.
func (s CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// InFlight reports whether an order has been handed to the backend and not yet settled.
func (s CheckoutState) InFlight() bool {
	return s == CheckoutStateSubmitting || s == CheckoutStateAwaitingPayment
}

// CanSubmit reports whether a new submission may start from this state.
func (s CheckoutState) CanSubmit() bool {
	switch s {
	case CheckoutStateIdle, CheckoutStateFailed, CheckoutStateCancelled:
		return true
	}
	return false
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}

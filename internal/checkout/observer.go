package checkout

import (
	"context"
	"time"

	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/metrics"
)

// Observer is told about every state change and every settled submission.
type Observer interface {
	Transition(ctx context.Context, sessionID, owner string, from, to enums.CheckoutState, cause error)
	Submission(ctx context.Context, outcome string, elapsed time.Duration)
}

type telemetryObserver struct {
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

// NewObserver reports transitions as prometheus metrics and log entries.
// Either argument may be nil.
func NewObserver(m *metrics.CheckoutMetrics, logg *logger.Logger) Observer {
	return &telemetryObserver{metrics: m, logg: logg}
}

func (o *telemetryObserver) Transition(ctx context.Context, sessionID, owner string, from, to enums.CheckoutState, cause error) {
	o.metrics.IncTransition(from.String(), to.String())
	if o.logg == nil {
		return
	}
	ctx = o.logg.WithSessionID(o.logg.WithOwner(ctx, owner), sessionID)
	ctx = o.logg.WithFields(ctx, map[string]any{"from": from.String(), "to": to.String()})
	if to == enums.CheckoutStateFailed {
		o.logg.Error(ctx, "checkout.transition", cause)
		return
	}
	o.logg.Info(ctx, "checkout.transition")
}

func (o *telemetryObserver) Submission(_ context.Context, outcome string, elapsed time.Duration) {
	o.metrics.ObserveSubmission(outcome, elapsed)
}

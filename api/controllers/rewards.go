package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/ghanadude-checkout/api/middleware"
	"github.com/angelmondragon/ghanadude-checkout/api/responses"
	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	"github.com/angelmondragon/ghanadude-checkout/pkg/auth"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

// RewardSource reads a signed-in user's loyalty state.
type RewardSource interface {
	RewardBalance(ctx context.Context, userID int64) (pricing.RewardBalance, error)
	Coupons(ctx context.Context, userID int64) ([]pricing.Coupon, error)
}

type rewardsResponse struct {
	Balance pricing.RewardBalance `json:"balance"`
	Coupons []pricing.Coupon      `json:"coupons"`
}

// RewardsFetch lists the user's points and the coupons they can still redeem.
func RewardsFetch(rewards RewardSource, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromOwner(middleware.OwnerFromContext(r.Context()))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view rewards"))
			return
		}

		var resp rewardsResponse
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			balance, err := rewards.RewardBalance(ctx, userID)
			resp.Balance = balance
			return err
		})
		g.Go(func() error {
			coupons, err := rewards.Coupons(ctx, userID)
			if err != nil {
				return err
			}
			at := now()
			resp.Coupons = make([]pricing.Coupon, 0, len(coupons))
			for _, coupon := range coupons {
				if coupon.Check(at) == nil {
					resp.Coupons = append(resp.Coupons, coupon)
				}
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}

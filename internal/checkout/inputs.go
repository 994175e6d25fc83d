package checkout

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/ghanadude-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

type pricingInputs struct {
	settings pricing.SiteSettings
	balance  pricing.RewardBalance
	coupon   *pricing.Coupon
}

// loadPricingInputs fetches site settings, reward balance and the coupon in
// parallel. Guests have no balance and cannot redeem coupons.
func (s *Session) loadPricingInputs(ctx context.Context, couponCode string) (pricingInputs, error) {
	var in pricingInputs
	if s.userID <= 0 && couponCode != "" {
		return in, pkgerrors.Field("coupon_code", "sign in to use a coupon")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		settings, err := s.siteSettings(gctx)
		in.settings = settings
		return err
	})
	if s.userID > 0 {
		g.Go(func() error {
			balance, err := s.backend.RewardBalance(gctx, s.userID)
			in.balance = balance
			return err
		})
	}
	if couponCode != "" {
		g.Go(func() error {
			coupon, err := s.lookupCoupon(gctx, couponCode)
			in.coupon = coupon
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return pricingInputs{}, err
	}
	return in, nil
}

// siteSettings is fetched on first use and kept for the life of the session.
func (s *Session) siteSettings(ctx context.Context) (pricing.SiteSettings, error) {
	s.mu.Lock()
	if s.settings != nil {
		cached := *s.settings
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	settings, err := s.backend.SiteSettings(ctx)
	if err != nil {
		return pricing.SiteSettings{}, err
	}
	s.mu.Lock()
	s.settings = &settings
	s.mu.Unlock()
	return settings, nil
}

func (s *Session) lookupCoupon(ctx context.Context, code string) (*pricing.Coupon, error) {
	coupon, err := s.backend.Coupon(ctx, s.userID, code)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Field("coupon_code", "coupon not found")
		}
		return nil, err
	}
	if err := coupon.Check(s.now()); err != nil {
		return nil, err
	}
	return coupon, nil
}

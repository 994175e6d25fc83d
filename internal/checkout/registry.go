package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

// CartSource opens the cart for an owner.
type CartSource interface {
	Store(ctx context.Context, owner string) (*cart.Store, error)
}

// Registry keeps one live session per owner.
type Registry struct {
	mu       sync.Mutex
	carts    CartSource
	deps     Dependencies
	settings Settings
	sessions map[string]*Session
}

// NewRegistry builds a registry. deps.Cart is ignored; each session gets the
// owner's cart from carts.
func NewRegistry(carts CartSource, deps Dependencies, settings Settings) (*Registry, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart source required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	deps.Cart = nil
	return &Registry{
		carts:    carts,
		deps:     deps,
		settings: settings,
		sessions: map[string]*Session{},
	}, nil
}

// Session returns the owner's live session, starting a fresh one when none
// exists or the previous one completed. A completed session whose cart clear
// failed is retried first and kept until the clear lands.
func (r *Registry) Session(ctx context.Context, owner string) (*Session, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout owner required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[owner]; ok && !sess.finished() {
		if sess.State() != enums.CheckoutStateCompleted {
			return sess, nil
		}
		if err := sess.PaymentSucceeded(ctx); err != nil {
			return sess, nil
		}
	}

	store, err := r.carts.Store(ctx, owner)
	if err != nil {
		return nil, err
	}
	deps := r.deps
	deps.Cart = store
	sess, err := NewSession(deps, r.settings)
	if err != nil {
		return nil, err
	}
	r.sessions[owner] = sess
	return sess, nil
}

// Lookup returns the owner's current session without creating one.
func (r *Registry) Lookup(owner string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[strings.TrimSpace(owner)]
	return sess, ok
}

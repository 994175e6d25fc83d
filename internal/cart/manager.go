package cart

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

// Manager opens owner carts over a shared persister. Stores are not cached:
// every call rehydrates, so instances behind a load balancer see each other's
// writes and idle owners cost nothing.
type Manager struct {
	persister Persister
	opts      Options
}

func NewManager(persister Persister, opts Options) (*Manager, error) {
	if persister == nil {
		return nil, fmt.Errorf("cart persister required")
	}
	return &Manager{persister: persister, opts: opts}, nil
}

// Store returns the cart for owner loaded from the persister.
func (m *Manager) Store(ctx context.Context, owner string) (*Store, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner required")
	}
	return Open(ctx, owner, m.persister, m.opts)
}

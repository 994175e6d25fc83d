package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/metrics"
)

func newRegistry(t *testing.T, observer Observer) (*Registry, *cart.Manager) {
	t.Helper()
	manager, err := cart.NewManager(cart.NewMemoryPersister(), cart.Options{})
	require.NoError(t, err)
	reg, err := NewRegistry(manager, Dependencies{Backend: newFakeBackend(), Observer: observer}, Settings{})
	require.NoError(t, err)
	return reg, manager
}

func TestNewRegistry_RequiresCollaborators(t *testing.T) {
	_, err := NewRegistry(nil, Dependencies{Backend: newFakeBackend()}, Settings{})
	require.Error(t, err)

	manager, err := cart.NewManager(cart.NewMemoryPersister(), cart.Options{})
	require.NoError(t, err)
	_, err = NewRegistry(manager, Dependencies{}, Settings{})
	require.Error(t, err)
}

func TestRegistry_OneSessionPerOwner(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t, nil)

	a, err := reg.Session(ctx, "user:1")
	require.NoError(t, err)
	again, err := reg.Session(ctx, " user:1 ")
	require.NoError(t, err)
	other, err := reg.Session(ctx, "user:2")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, other)

	_, err = reg.Session(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	found, ok := reg.Lookup("user:1")
	assert.True(t, ok)
	assert.Same(t, a, found)
	_, ok = reg.Lookup("user:3")
	assert.False(t, ok)
}

func TestRegistry_ReplacesCompletedSession(t *testing.T) {
	ctx := context.Background()
	promReg := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetrics(promReg)
	reg, manager := newRegistry(t, NewObserver(m, nil))

	store, err := manager.Store(ctx, "user:1")
	require.NoError(t, err)
	require.NoError(t, store.AddOrIncrement(ctx, 1, "", decimal.NewFromInt(10), 1, cart.Meta{}))

	sess, err := reg.Session(ctx, "user:1")
	require.NoError(t, err)
	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)
	require.NoError(t, sess.PaymentSucceeded(ctx))
	require.NoError(t, store.Refresh(ctx))
	assert.Empty(t, store.Lines())

	found, ok := reg.Lookup("user:1")
	require.True(t, ok)
	assert.Equal(t, enums.CheckoutStateCompleted, found.State())

	fresh, err := reg.Session(ctx, "user:1")
	require.NoError(t, err)
	assert.NotSame(t, sess, fresh)
	assert.Equal(t, enums.CheckoutStateIdle, fresh.State())

	series, err := testutil.GatherAndCount(promReg, "checkout_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 4, series)
}

// flakyPersister fails saves while failing is set.
type flakyPersister struct {
	*cart.MemoryPersister
	failing bool
}

func (f *flakyPersister) Save(ctx context.Context, owner string, expected int64, state cart.State) error {
	if f.failing {
		return errors.New("redis unavailable")
	}
	return f.MemoryPersister.Save(ctx, owner, expected, state)
}

func TestRegistry_KeepsCompletedSessionUntilCartCleared(t *testing.T) {
	ctx := context.Background()
	persister := &flakyPersister{MemoryPersister: cart.NewMemoryPersister()}
	manager, err := cart.NewManager(persister, cart.Options{})
	require.NoError(t, err)
	reg, err := NewRegistry(manager, Dependencies{Backend: newFakeBackend()}, Settings{})
	require.NoError(t, err)

	store, err := manager.Store(ctx, "user:7")
	require.NoError(t, err)
	require.NoError(t, store.AddOrIncrement(ctx, 1, "", decimal.NewFromInt(10), 1, cart.Meta{}))

	sess, err := reg.Session(ctx, "user:7")
	require.NoError(t, err)
	sub, err := sess.Submit(ctx, validForm(), deliveryOpts(enums.PaymentMethodEFT))
	require.NoError(t, err)
	waitAccepted(t, sub)

	persister.failing = true
	err = sess.PaymentSucceeded(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, enums.CheckoutStateCompleted, sess.State())

	stillFailing, err := reg.Session(ctx, "user:7")
	require.NoError(t, err)
	assert.Same(t, sess, stillFailing)
	require.NoError(t, store.Refresh(ctx))
	assert.Equal(t, 1, store.TotalItemCount())

	persister.failing = false
	fresh, err := reg.Session(ctx, "user:7")
	require.NoError(t, err)
	assert.NotSame(t, sess, fresh)
	assert.Equal(t, enums.CheckoutStateIdle, fresh.State())
	require.NoError(t, store.Refresh(ctx))
	assert.Zero(t, store.TotalItemCount())
}

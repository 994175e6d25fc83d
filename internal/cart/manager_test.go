package cart

import (
	"context"
	"testing"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StoreRehydratesEachCall(t *testing.T) {
	ctx := context.Background()
	manager, err := NewManager(NewMemoryPersister(), Options{})
	require.NoError(t, err)

	store, err := manager.Store(ctx, "user:9")
	require.NoError(t, err)
	require.NoError(t, store.AddOrIncrement(ctx, 1, "", price("10"), 2, Meta{}))

	reopened, err := manager.Store(ctx, " user:9 ")
	require.NoError(t, err)
	assert.NotSame(t, store, reopened)
	assert.Equal(t, 2, reopened.TotalItemCount())

	other, err := manager.Store(ctx, "user:10")
	require.NoError(t, err)
	assert.Equal(t, 0, other.TotalItemCount())
}

func TestManager_InstancesSharingAPersisterKeepBothWrites(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	instanceA, err := NewManager(persister, Options{})
	require.NoError(t, err)
	instanceB, err := NewManager(persister, Options{})
	require.NoError(t, err)

	storeA, err := instanceA.Store(ctx, "device:shared")
	require.NoError(t, err)
	storeB, err := instanceB.Store(ctx, "device:shared")
	require.NoError(t, err)

	require.NoError(t, storeA.AddOrIncrement(ctx, 1, "M", price("100"), 1, Meta{}))
	require.NoError(t, storeB.AddOrIncrement(ctx, 2, "L", price("50"), 1, Meta{}))

	reread, err := instanceA.Store(ctx, "device:shared")
	require.NoError(t, err)
	lines := reread.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.Equal(t, int64(2), lines[1].ProductID)

	// A store opened before B's write still merges into the latest state.
	require.NoError(t, storeA.AddOrIncrement(ctx, 2, "L", price("50"), 1, Meta{}))
	assert.Equal(t, 3, storeA.TotalItemCount())
}

func TestManager_RequiresOwner(t *testing.T) {
	manager, err := NewManager(NewMemoryPersister(), Options{})
	require.NoError(t, err)

	_, err = manager.Store(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = NewManager(nil, Options{})
	require.Error(t, err)
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/shopspring/decimal"
)

type mutationRecorder interface {
	IncMutation(op string, err error)
}

// Options wires optional collaborators into a Store.
type Options struct {
	Logger  *logger.Logger
	Metrics mutationRecorder
}

// maxMutationAttempts bounds how often a mutation re-reads and retries after
// losing a revision race.
const maxMutationAttempts = 3

// Store is an owner's cart. Every mutation re-reads the persisted state and
// writes it back guarded by its revision, so concurrent instances never drop
// each other's updates. A failed write leaves both copies at the stored state.
type Store struct {
	mu        sync.Mutex
	owner     string
	state     State
	persister Persister
	logg      *logger.Logger
	metrics   mutationRecorder
}

// Open rehydrates the cart for owner from the persister. Payloads that cannot be
// decoded are discarded and the cart starts empty.
func Open(ctx context.Context, owner string, persister Persister, opts Options) (*Store, error) {
	if persister == nil {
		return nil, fmt.Errorf("cart persister required")
	}
	s := &Store{
		owner:     owner,
		state:     emptyState(),
		persister: persister,
		logg:      opts.Logger,
		metrics:   opts.Metrics,
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh replaces the in-memory state with what is currently persisted.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.state = state
	return nil
}

func (s *Store) load(ctx context.Context) (State, error) {
	loaded, err := s.persister.Load(ctx, s.owner)
	switch {
	case err == nil && loaded == nil:
		return emptyState(), nil
	case err == nil:
		return loaded.clone(), nil
	case errors.Is(err, ErrCorruptState):
		s.logWarn(ctx, "cart.rehydrate.discarded", err)
		if loaded != nil {
			return loaded.clone(), nil
		}
		return emptyState(), nil
	}
	return State{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
}

// Owner returns the key the store was opened for.
func (s *Store) Owner() string {
	return s.owner
}

// AddOrIncrement appends a new line or raises the quantity of an existing one.
// An existing line keeps the unit price it was first added with.
func (s *Store) AddOrIncrement(ctx context.Context, productID int64, variantKey string, unitPrice decimal.Decimal, quantity int, meta Meta) error {
	if productID <= 0 {
		return pkgerrors.Field("product_id", "product id must be positive")
	}
	if quantity < 1 {
		return pkgerrors.Field("quantity", "quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return pkgerrors.Field("unit_price", "unit price must not be negative")
	}
	variantKey = normalizeVariant(variantKey)

	return s.mutate(ctx, "add", func(next *State) (bool, error) {
		if idx := next.indexOf(productID, variantKey); idx >= 0 {
			next.Lines[idx].Quantity += quantity
			return true, nil
		}
		next.Lines = append(next.Lines, Line{
			ProductID:   productID,
			VariantKey:  variantKey,
			UnitPrice:   unitPrice,
			Quantity:    quantity,
			DisplayName: meta.DisplayName,
			ImageRef:    meta.ImageRef,
		})
		return true, nil
	})
}

// Decrement lowers a line's quantity by one and drops the line instead of
// letting it reach zero. Unknown lines are ignored.
func (s *Store) Decrement(ctx context.Context, productID int64, variantKey string) error {
	variantKey = normalizeVariant(variantKey)
	return s.mutate(ctx, "decrement", func(next *State) (bool, error) {
		idx := next.indexOf(productID, variantKey)
		if idx < 0 {
			return false, nil
		}
		if next.Lines[idx].Quantity <= 1 {
			next.Lines = append(next.Lines[:idx], next.Lines[idx+1:]...)
			return true, nil
		}
		next.Lines[idx].Quantity--
		return true, nil
	})
}

// SetQuantity overwrites a line's quantity, clamping anything below 1 to 1.
func (s *Store) SetQuantity(ctx context.Context, productID int64, variantKey string, quantity int) error {
	variantKey = normalizeVariant(variantKey)
	if quantity < 1 {
		quantity = 1
	}
	return s.mutate(ctx, "set_quantity", func(next *State) (bool, error) {
		idx := next.indexOf(productID, variantKey)
		if idx < 0 {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
				WithDetails(map[string]any{"product_id": productID, "variant_key": variantKey})
		}
		if next.Lines[idx].Quantity == quantity {
			return false, nil
		}
		next.Lines[idx].Quantity = quantity
		return true, nil
	})
}

// Remove deletes a line regardless of its quantity.
func (s *Store) Remove(ctx context.Context, productID int64, variantKey string) error {
	variantKey = normalizeVariant(variantKey)
	return s.mutate(ctx, "remove", func(next *State) (bool, error) {
		idx := next.indexOf(productID, variantKey)
		if idx < 0 {
			return false, nil
		}
		next.Lines = append(next.Lines[:idx], next.Lines[idx+1:]...)
		return true, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", func(next *State) (bool, error) {
		next.Lines = []Line{}
		return true, nil
	})
}

// TotalItemCount sums quantities across all lines.
func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ItemCount()
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	return s.Snapshot().Lines
}

// Snapshot returns a copy of the full state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// mutate loads the persisted state, applies fn to a copy and writes it back
// under the loaded revision, swapping it in only once the write lands. Lost
// races are retried against the fresh state. fn reports whether anything
// changed; unchanged states are not written.
func (s *Store) mutate(ctx context.Context, op string, fn func(next *State) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saveErr error
	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		current, err := s.load(ctx)
		if err != nil {
			return err
		}
		s.state = current

		next := current.clone()
		changed, err := fn(&next)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		next.Revision = current.Revision + 1

		saveErr = s.persister.Save(ctx, s.owner, current.Revision, next)
		if saveErr == nil {
			s.state = next
			s.record(op, nil)
			return nil
		}
		if !errors.Is(saveErr, ErrRevisionConflict) {
			s.record(op, saveErr)
			s.logError(ctx, "cart.persist.failed", op, saveErr)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "persist cart")
		}
	}
	s.record(op, saveErr)
	s.logError(ctx, "cart.persist.conflict", op, saveErr)
	return pkgerrors.Wrap(pkgerrors.CodeConflict, saveErr, "cart changed concurrently, try again")
}

func (s *Store) record(op string, err error) {
	if s.metrics != nil {
		s.metrics.IncMutation(op, err)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"owner": s.owner, "error": err.Error()})
	s.logg.Warn(ctx, msg)
}

func (s *Store) logError(ctx context.Context, msg, op string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"owner": s.owner, "op": op})
	s.logg.Error(ctx, msg, err)
}

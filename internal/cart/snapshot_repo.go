package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/ghanadude-checkout/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRepository persists cart states in the cart_snapshots table. The
// revision column is authoritative for concurrent writers.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) (*SnapshotRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &SnapshotRepository{db: db}, nil
}

func (r *SnapshotRepository) Load(ctx context.Context, owner string) (*State, error) {
	var row models.CartSnapshot
	err := r.db.WithContext(ctx).
		Where("owner = ?", StorageKey(owner)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	state, err := decodeState([]byte(row.Payload))
	state.Revision = row.Revision
	return state, err
}

// Save updates the row guarded by its revision, inserting it when the caller
// expects an empty slot.
func (r *SnapshotRepository) Save(ctx context.Context, owner string, expected int64, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	key := StorageKey(owner)

	res := r.db.WithContext(ctx).Model(&models.CartSnapshot{}).
		Where("owner = ? AND revision = ?", key, expected).
		Updates(map[string]any{
			"revision":   state.Revision,
			"version":    state.Version,
			"item_count": state.ItemCount(),
			"payload":    string(payload),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("save cart snapshot: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if expected != 0 {
		return ErrRevisionConflict
	}

	row := models.CartSnapshot{
		Owner:     key,
		Revision:  state.Revision,
		Version:   state.Version,
		ItemCount: state.ItemCount(),
		Payload:   string(payload),
	}
	res = r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("insert cart snapshot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRevisionConflict
	}
	return nil
}

// PurgeBefore deletes snapshots untouched since cutoff. A nil tx uses the
// repository connection.
func (r *SnapshotRepository) PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.CartSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge cart snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}

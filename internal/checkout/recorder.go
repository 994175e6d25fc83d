package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ghanadude-checkout/pkg/db/models"
	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
)

// Record is the persisted view of a session after a transition.
type Record struct {
	SessionID     string
	Owner         string
	State         enums.CheckoutState
	DraftID       string
	OrderID       string
	PaymentURL    string
	FailureReason string
	Total         decimal.Decimal
	RewardApplied decimal.Decimal
	Draft         *OrderDraft
}

// Recorder persists session records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// GormRecorder writes records to the checkout_sessions table, one row per session.
type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &GormRecorder{db: db}, nil
}

func (r *GormRecorder) Record(ctx context.Context, rec Record) error {
	row := models.CheckoutSession{
		ID:            rec.SessionID,
		Owner:         rec.Owner,
		State:         rec.State,
		DraftID:       optional(rec.DraftID),
		OrderID:       optional(rec.OrderID),
		PaymentURL:    optional(rec.PaymentURL),
		FailureReason: optional(rec.FailureReason),
		Total:         rec.Total,
		RewardApplied: rec.RewardApplied,
	}
	if rec.Draft != nil {
		payload, err := json.Marshal(rec.Draft)
		if err != nil {
			return fmt.Errorf("marshal order draft: %w", err)
		}
		row.Draft = optional(string(payload))
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state", "draft_id", "order_id", "payment_url", "failure_reason",
			"total", "reward_applied", "draft", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record checkout session: %w", err)
	}
	return nil
}

// Latest returns the most recently updated session row for owner, or nil.
func (r *GormRecorder) Latest(ctx context.Context, owner string) (*models.CheckoutSession, error) {
	var rows []models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("updated_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load checkout session: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

var finishedStates = []enums.CheckoutState{
	enums.CheckoutStateCompleted,
	enums.CheckoutStateFailed,
	enums.CheckoutStateCancelled,
}

// PurgeBefore deletes finished session rows last updated before cutoff.
// Sessions still in flight are kept whatever their age.
func (r *GormRecorder) PurgeBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Where("updated_at < ? AND state IN ?", cutoff, finishedStates).
		Delete(&models.CheckoutSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge checkout sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

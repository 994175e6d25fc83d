package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ghanadude-checkout/pkg/enums"
)

// CheckoutSession is the audit row written on every checkout state transition.
type CheckoutSession struct {
	ID            string              `gorm:"column:id;primaryKey;size:36"`
	Owner         string              `gorm:"column:owner;size:128;not null;index:idx_checkout_sessions_owner"`
	State         enums.CheckoutState `gorm:"column:state;size:32;not null;default:'idle'"`
	DraftID       *string             `gorm:"column:draft_id;size:36"`
	OrderID       *string             `gorm:"column:order_id;size:64"`
	PaymentURL    *string             `gorm:"column:payment_url;type:text"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	RewardApplied decimal.Decimal     `gorm:"column:reward_applied;type:numeric(12,2);not null;default:0"`
	FailureReason *string             `gorm:"column:failure_reason;type:text"`
	Draft         *string             `gorm:"column:draft;type:text"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (CheckoutSession) TableName() string { return "checkout_sessions" }

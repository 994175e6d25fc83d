package models

import "time"

// CartSnapshot stores the serialized cart of one owner (device or user).
type CartSnapshot struct {
	Owner     string    `gorm:"column:owner;primaryKey;size:128"`
	Revision  int64     `gorm:"column:revision;not null;default:0"`
	Version   int       `gorm:"column:version;not null;default:1"`
	ItemCount int       `gorm:"column:item_count;not null;default:0"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSnapshot) TableName() string { return "cart_snapshots" }

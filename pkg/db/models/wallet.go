package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the per-user monetary snapshot. Balance, frozen amount, points and
// consumables are a cache of the ordered wallet_transactions fold, not an
// independent source of truth.
type Wallet struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Balance     decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	Frozen      decimal.Decimal `gorm:"column:frozen;type:numeric(12,2);not null;default:0"`
	Points      int             `gorm:"column:points;not null;default:0"`
	ReviveCards int             `gorm:"column:revive_cards;not null;default:0"`
	Premium     bool            `gorm:"column:premium;not null;default:false"`
	AvatarFrame *string         `gorm:"column:avatar_frame"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

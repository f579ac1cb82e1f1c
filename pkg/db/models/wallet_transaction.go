package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routong/routong-backend/pkg/enums"
)

// WalletTransaction records one immutable ledger mutation. Rows are append-only;
// the unique (wallet_id, kind, cause_ref) index is the idempotency backstop.
type WalletTransaction struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID     uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null;index;uniqueIndex:ux_wallet_transactions_wallet_kind_cause,priority:1"`
	Kind         enums.TransactionKind `gorm:"column:kind;type:transaction_kind_enum;not null;uniqueIndex:ux_wallet_transactions_wallet_kind_cause,priority:2"`
	BalanceDelta decimal.Decimal       `gorm:"column:balance_delta;type:numeric(12,2);not null;default:0"`
	FrozenDelta  decimal.Decimal       `gorm:"column:frozen_delta;type:numeric(12,2);not null;default:0"`
	PointsDelta  int                   `gorm:"column:points_delta;not null;default:0"`
	CauseRef     string                `gorm:"column:cause_ref;not null;uniqueIndex:ux_wallet_transactions_wallet_kind_cause,priority:3"`
	Description  string                `gorm:"column:description;not null;default:''"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routong/routong-backend/pkg/enums"
)

// Contract is a staked commitment. While its status holds escrow it owns exactly
// one escrow_hold transaction keyed by the contract id.
type Contract struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Title              string                   `gorm:"column:title;not null"`
	Description        string                   `gorm:"column:description;not null;default:''"`
	PledgeAmount       decimal.Decimal          `gorm:"column:pledge_amount;type:numeric(12,2);not null"`
	Deadline           time.Time                `gorm:"column:deadline;not null;index"`
	VerificationMethod enums.VerificationMethod `gorm:"column:verification_method;type:verification_method_enum;not null"`
	ShameTargetName    string                   `gorm:"column:shame_target_name;not null"`
	ShameTargetPhone   string                   `gorm:"column:shame_target_phone;not null"`
	ShameRelationship  enums.ShameRelationship  `gorm:"column:shame_relationship;type:shame_relationship_enum;not null"`
	Status             enums.ContractStatus     `gorm:"column:status;type:contract_status_enum;not null;default:'pending'"`
	SettledAt          *time.Time               `gorm:"column:settled_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

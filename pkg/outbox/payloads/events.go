package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routong/routong-backend/pkg/enums"
)

// ContractCompletedEvent is emitted when a contract settles on the success
// path and its escrow returns to the owner's balance.
type ContractCompletedEvent struct {
	ContractID   uuid.UUID       `json:"contract_id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	WalletID     uuid.UUID       `json:"wallet_id"`
	Title        string          `json:"title"`
	PledgeAmount decimal.Decimal `json:"pledge_amount"`
	RewardPoints int             `json:"reward_points"`
	RevivedCard  bool            `json:"revived_card"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// ContractPunishedEvent is emitted exactly once per forfeiture. The
// notification consumer turns it into the shame message.
type ContractPunishedEvent struct {
	ContractID        uuid.UUID               `json:"contract_id"`
	OwnerID           uuid.UUID               `json:"owner_id"`
	WalletID          uuid.UUID               `json:"wallet_id"`
	Title             string                  `json:"title"`
	PledgeAmount      decimal.Decimal         `json:"pledge_amount"`
	ShameTargetName   string                  `json:"shame_target_name"`
	ShameTargetPhone  string                  `json:"shame_target_phone"`
	ShameRelationship enums.ShameRelationship `json:"shame_relationship"`
	PunishedAt        time.Time               `json:"punished_at"`
}

// PurchaseCreditedEvent records a reconciled store receipt.
type PurchaseCreditedEvent struct {
	WalletID   uuid.UUID       `json:"wallet_id"`
	ReceiptID  string          `json:"receipt_id"`
	NetAmount  decimal.Decimal `json:"net_amount"`
	CreditedAt time.Time       `json:"credited_at"`
}

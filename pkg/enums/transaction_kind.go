package enums

import "fmt"

// TransactionKind maps to the transaction_kind_enum enum in Postgres.
type TransactionKind string

const (
	TransactionKindTopUp          TransactionKind = "top_up"
	TransactionKindEscrowHold     TransactionKind = "escrow_hold"
	TransactionKindEscrowRelease  TransactionKind = "escrow_release"
	TransactionKindEscrowForfeit  TransactionKind = "escrow_forfeit"
	TransactionKindReward         TransactionKind = "reward"
	TransactionKindPurchaseDebit  TransactionKind = "purchase_debit"
	TransactionKindPointsDebit    TransactionKind = "points_debit"
	TransactionKindPurchaseCredit TransactionKind = "purchase_credit"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindTopUp,
	TransactionKindEscrowHold,
	TransactionKindEscrowRelease,
	TransactionKindEscrowForfeit,
	TransactionKindReward,
	TransactionKindPurchaseDebit,
	TransactionKindPointsDebit,
	TransactionKindPurchaseCredit,
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}

package enums

import "fmt"

// ContractStatus maps to the contract_status_enum enum in Postgres.
type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusFailed    ContractStatus = "failed"
	ContractStatusPunished  ContractStatus = "punished"
)

var validContractStatuses = []ContractStatus{
	ContractStatusPending,
	ContractStatusActive,
	ContractStatusCompleted,
	ContractStatusFailed,
	ContractStatusPunished,
}

// IsValid reports whether the value matches the canonical contract status enum.
func (s ContractStatus) IsValid() bool {
	for _, candidate := range validContractStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s ContractStatus) IsTerminal() bool {
	switch s {
	case ContractStatusCompleted, ContractStatusFailed, ContractStatusPunished:
		return true
	}
	return false
}

// HoldsEscrow reports whether a contract in this status owns a live escrow hold.
func (s ContractStatus) HoldsEscrow() bool {
	return s == ContractStatusPending || s == ContractStatusActive
}

// ParseContractStatus converts raw input into ContractStatus.
func ParseContractStatus(value string) (ContractStatus, error) {
	for _, candidate := range validContractStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract status %q", value)
}

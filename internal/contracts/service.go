package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/internal/ledger"
	"github.com/routong/routong-backend/internal/locks"
	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/outbox"
	"github.com/routong/routong-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries everything needed to open a staked commitment.
type CreateInput struct {
	OwnerID            uuid.UUID
	Title              string
	Description        string
	PledgeAmount       decimal.Decimal
	Deadline           time.Time
	VerificationMethod enums.VerificationMethod
	ShameTargetName    string
	ShameTargetPhone   string
	ShameRelationship  enums.ShameRelationship
}

// EvidenceInput is one completion attempt by the contract owner.
type EvidenceInput struct {
	ContractID    uuid.UUID
	OwnerID       uuid.UUID
	Evidence      []byte
	UseReviveCard bool
}

// Service drives the contract lifecycle. Transitions on a contract are
// serialized; the escrow move and the status change commit atomically.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Contract, error)
	Activate(ctx context.Context, contractID uuid.UUID) (*models.Contract, error)
	Get(ctx context.Context, contractID, ownerID uuid.UUID) (*models.Contract, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error)
	SubmitEvidence(ctx context.Context, input EvidenceInput) (*models.Contract, error)
	Expire(ctx context.Context, contractID uuid.UUID) (*models.Contract, error)
	SweepExpired(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo        Repository
	ledger      ledger.Service
	outbox      *outbox.Service
	adjudicator Adjudicator
	tx          txRunner
	logg        *logger.Logger
	locks       *locks.KeyedMutex
	now         func() time.Time
}

// NewService wires the contract state machine.
func NewService(repo Repository, ledgerSvc ledger.Service, outboxSvc *outbox.Service, adjudicator Adjudicator, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if adjudicator == nil {
		return nil, fmt.Errorf("adjudicator required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		ledger:      ledgerSvc,
		outbox:      outboxSvc,
		adjudicator: adjudicator,
		tx:          tx,
		logg:        logg,
		locks:       locks.NewKeyedMutex(),
		now:         time.Now,
	}, nil
}

// Create opens a pending contract and freezes its pledge in one transaction.
// A contract never exists without a funded hold. On success the contract is
// activated immediately.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Contract, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}
	wallet, err := s.ledger.WalletByUser(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}

	contract := &models.Contract{
		ID:                 uuid.New(),
		UserID:             input.OwnerID,
		Title:              input.Title,
		Description:        input.Description,
		PledgeAmount:       input.PledgeAmount,
		Deadline:           input.Deadline,
		VerificationMethod: input.VerificationMethod,
		ShameTargetName:    input.ShameTargetName,
		ShameTargetPhone:   input.ShameTargetPhone,
		ShameRelationship:  input.ShameRelationship,
		Status:             enums.ContractStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, contract); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contract")
		}
		if _, err := s.ledger.EscrowHold(ctx, tx, wallet.ID, contract.ID, input.PledgeAmount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	activated, err := s.Activate(ctx, contract.ID)
	if err != nil {
		// The pending contract keeps its hold; the expiry sweep still
		// covers it if activation is never retried.
		s.logg.Error(ctx, "contract activation failed", err)
		return contract, nil
	}
	return activated, nil
}

// Activate moves a pending contract into the active state.
func (s *service) Activate(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	s.locks.Lock(contractID.String())
	defer s.locks.Unlock(contractID.String())

	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status == enums.ContractStatusActive {
		return contract, nil
	}
	if contract.Status != enums.ContractStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadySettled, "contract already settled")
	}
	rows, err := s.repo.UpdateStatus(ctx, contractID, []enums.ContractStatus{enums.ContractStatusPending}, enums.ContractStatusActive, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate contract")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadySettled, "contract already settled")
	}
	contract.Status = enums.ContractStatusActive
	return contract, nil
}

func (s *service) Get(ctx context.Context, contractID, ownerID uuid.UUID) (*models.Contract, error) {
	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if ownerID != uuid.Nil && contract.UserID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "contract belongs to another user")
	}
	return contract, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error) {
	contracts, err := s.repo.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contracts")
	}
	return contracts, nil
}

// SubmitEvidence runs one completion attempt. Evidence submitted strictly
// before the deadline is adjudicated; anything later settles as an expiry.
func (s *service) SubmitEvidence(ctx context.Context, input EvidenceInput) (*models.Contract, error) {
	submittedAt := s.now()

	s.locks.Lock(input.ContractID.String())
	defer s.locks.Unlock(input.ContractID.String())

	contract, err := s.load(ctx, input.ContractID)
	if err != nil {
		return nil, err
	}
	if contract.UserID != input.OwnerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "contract belongs to another user")
	}
	if contract.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadySettled, "contract already settled")
	}
	if contract.Status != enums.ContractStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "contract is not active")
	}

	wallet, err := s.ledger.WalletByUser(ctx, contract.UserID)
	if err != nil {
		return nil, err
	}

	if !submittedAt.Before(contract.Deadline) {
		return s.settleFailure(ctx, contract, wallet, input.UseReviveCard, activeOnly())
	}

	verdict, err := s.adjudicator.Adjudicate(ctx, contract.ID, contract.VerificationMethod, input.Evidence)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjudicate evidence")
	}

	switch verdict {
	case VerdictPassed:
		return s.settleCompleted(ctx, contract, wallet, false, activeOnly())
	case VerdictFailed:
		return s.settleFailure(ctx, contract, wallet, input.UseReviveCard, activeOnly())
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unknown verdict %q", verdict))
	}
}

// Expire settles a contract whose deadline passed without a passing verdict.
// A revive card on the wallet is redeemed automatically.
func (s *service) Expire(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	s.locks.Lock(contractID.String())
	defer s.locks.Unlock(contractID.String())

	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadySettled, "contract already settled")
	}
	if s.now().Before(contract.Deadline) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "deadline not reached")
	}

	wallet, err := s.ledger.WalletByUser(ctx, contract.UserID)
	if err != nil {
		return nil, err
	}
	return s.settleFailure(ctx, contract, wallet, true, holdingStates())
}

// SweepExpired settles every overdue contract it can reach and reports how
// many were resolved.
func (s *service) SweepExpired(ctx context.Context, limit int) (int, error) {
	overdue, err := s.repo.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired contracts")
	}

	var settled int
	var errs error
	for _, contract := range overdue {
		if _, err := s.Expire(ctx, contract.ID); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeAlreadySettled) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", contract.ID, err))
			continue
		}
		settled++
	}
	return settled, errs
}

func (s *service) load(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	contract, err := s.repo.Find(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	return contract, nil
}

// settleFailure resolves a failed or expired contract. A revive card, when
// present and consented to, converts the failure into a completion.
func (s *service) settleFailure(ctx context.Context, contract *models.Contract, wallet *models.Wallet, useReviveCard bool, from []enums.ContractStatus) (*models.Contract, error) {
	if useReviveCard && wallet.ReviveCards > 0 {
		return s.settleCompleted(ctx, contract, wallet, true, from)
	}
	return s.settlePunished(ctx, contract, wallet, from)
}

func (s *service) settleCompleted(ctx context.Context, contract *models.Contract, wallet *models.Wallet, revived bool, from []enums.ContractStatus) (*models.Contract, error) {
	settledAt := s.now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).UpdateStatus(ctx, contract.ID, from, enums.ContractStatusCompleted, &settledAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete contract")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeAlreadySettled, "contract already settled")
		}
		if revived {
			if _, err := s.ledger.RedeemReviveCard(ctx, tx, wallet.ID, contract.ID); err != nil {
				return err
			}
		} else {
			if _, err := s.ledger.EscrowRelease(ctx, tx, wallet.ID, contract.ID); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContractCompleted,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Actor:         &outbox.ActorRef{UserID: contract.UserID},
			Version:       1,
			OccurredAt:    settledAt,
			Data: payloads.ContractCompletedEvent{
				ContractID:   contract.ID,
				OwnerID:      contract.UserID,
				WalletID:     wallet.ID,
				Title:        contract.Title,
				PledgeAmount: contract.PledgeAmount,
				RewardPoints: ledger.SuccessRewardPoints,
				RevivedCard:  revived,
				CompletedAt:  settledAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	contract.Status = enums.ContractStatusCompleted
	contract.SettledAt = &settledAt
	ctx = s.logg.WithContractID(ctx, contract.ID.String())
	s.logg.Info(ctx, "contract completed")
	return contract, nil
}

func (s *service) settlePunished(ctx context.Context, contract *models.Contract, wallet *models.Wallet, from []enums.ContractStatus) (*models.Contract, error) {
	settledAt := s.now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).UpdateStatus(ctx, contract.ID, from, enums.ContractStatusPunished, &settledAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "punish contract")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeAlreadySettled, "contract already settled")
		}
		if _, err := s.ledger.EscrowForfeit(ctx, tx, wallet.ID, contract.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventContractPunished,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Actor:         &outbox.ActorRef{UserID: contract.UserID},
			Version:       1,
			OccurredAt:    settledAt,
			Data: payloads.ContractPunishedEvent{
				ContractID:        contract.ID,
				OwnerID:           contract.UserID,
				WalletID:          wallet.ID,
				Title:             contract.Title,
				PledgeAmount:      contract.PledgeAmount,
				ShameTargetName:   contract.ShameTargetName,
				ShameTargetPhone:  contract.ShameTargetPhone,
				ShameRelationship: contract.ShameRelationship,
				PunishedAt:        settledAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	contract.Status = enums.ContractStatusPunished
	contract.SettledAt = &settledAt
	ctx = s.logg.WithContractID(ctx, contract.ID.String())
	s.logg.Warn(ctx, "contract punished, escrow forfeited")
	return contract, nil
}

func (s *service) validateCreate(input CreateInput) error {
	if input.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if input.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if !input.PledgeAmount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "pledge amount must be positive")
	}
	if !input.Deadline.After(s.now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "deadline must be in the future")
	}
	if !input.VerificationMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid verification method")
	}
	if input.ShameTargetName == "" || input.ShameTargetPhone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shame target name and phone required")
	}
	if !input.ShameRelationship.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid shame relationship")
	}
	return nil
}

func activeOnly() []enums.ContractStatus {
	return []enums.ContractStatus{enums.ContractStatusActive}
}

func holdingStates() []enums.ContractStatus {
	return []enums.ContractStatus{enums.ContractStatusPending, enums.ContractStatusActive}
}

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/internal/locks"
	dbpkg "github.com/routong/routong-backend/pkg/db"
	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
)

// SuccessRewardPoints is the fixed bonus credited alongside an escrow release.
const SuccessRewardPoints = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Grant describes the entitlement or consumable credited by a spend operation.
// Exactly one spend records exactly one grant.
type Grant struct {
	ReviveCards int
	Premium     bool
	AvatarFrame *string
}

// Projection is a wallet snapshot recomputed by folding the transaction log in
// creation order. Consumable counters ride on the snapshot only; the fold
// covers the monetary fields and points.
type Projection struct {
	Balance decimal.Decimal
	Frozen  decimal.Decimal
	Points  int
}

// Service owns all wallet mutations. Every mutation appends exactly one
// transaction per effect, serialized per wallet.
type Service interface {
	CreateWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
	Wallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	WalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Transactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error)
	Replay(ctx context.Context, walletID uuid.UUID) (*Projection, error)

	TopUp(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, causeRef, description string) (*models.WalletTransaction, error)
	PurchaseCredit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, receiptID, description string) (*models.WalletTransaction, error)
	SpendBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, grant Grant, causeRef, description string) (*models.WalletTransaction, error)
	SpendPoints(ctx context.Context, walletID uuid.UUID, points int, grant Grant, causeRef, description string) (*models.WalletTransaction, error)

	EscrowHold(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error)
	EscrowRelease(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID) (*models.WalletTransaction, error)
	EscrowForfeit(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID) (*models.WalletTransaction, error)
	RedeemReviveCard(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID) (*models.WalletTransaction, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	locks *locks.KeyedMutex
}

// NewService wires a ledger service with the provided repository and
// transaction runner.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:  repo,
		tx:    tx,
		locks: locks.NewKeyedMutex(),
	}, nil
}

func (s *service) CreateWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet := &models.Wallet{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: decimal.Zero,
		Frozen:  decimal.Zero,
	}
	if err := s.repo.WithTx(tx).CreateWallet(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

func (s *service) Wallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) WalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindWalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) Transactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	transactions, err := s.repo.ListTransactions(ctx, walletID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return transactions, nil
}

func (s *service) Replay(ctx context.Context, walletID uuid.UUID) (*Projection, error) {
	transactions, err := s.repo.ListTransactionsOrdered(ctx, walletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction log")
	}
	projection := &Projection{Balance: decimal.Zero, Frozen: decimal.Zero}
	for _, transaction := range transactions {
		projection.Balance = projection.Balance.Add(transaction.BalanceDelta)
		projection.Frozen = projection.Frozen.Add(transaction.FrozenDelta)
		projection.Points += transaction.PointsDelta
	}
	return projection, nil
}

func (s *service) TopUp(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, causeRef, description string) (*models.WalletTransaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.standalone(ctx, walletID, intent{
		kind:         enums.TransactionKindTopUp,
		balanceDelta: amount,
		causeRef:     causeRef,
		description:  description,
	})
}

func (s *service) PurchaseCredit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, receiptID, description string) (*models.WalletTransaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.standalone(ctx, walletID, intent{
		kind:         enums.TransactionKindPurchaseCredit,
		balanceDelta: amount,
		causeRef:     receiptID,
		description:  description,
	})
}

func (s *service) SpendBalance(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, grant Grant, causeRef, description string) (*models.WalletTransaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.standalone(ctx, walletID, intent{
		kind:         enums.TransactionKindPurchaseDebit,
		balanceDelta: amount.Neg(),
		causeRef:     causeRef,
		description:  description,
		grant:        grant,
	})
}

func (s *service) SpendPoints(ctx context.Context, walletID uuid.UUID, points int, grant Grant, causeRef, description string) (*models.WalletTransaction, error) {
	if points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	return s.standalone(ctx, walletID, intent{
		kind:        enums.TransactionKindPointsDebit,
		pointsDelta: -points,
		causeRef:    causeRef,
		description: description,
		grant:       grant,
	})
}

func (s *service) EscrowHold(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	s.locks.Lock(walletID.String())
	defer s.locks.Unlock(walletID.String())

	return s.apply(ctx, s.repo.WithTx(tx), walletID, intent{
		kind:         enums.TransactionKindEscrowHold,
		balanceDelta: amount.Neg(),
		frozenDelta:  amount,
		causeRef:     contractID.String(),
		description:  "escrow hold",
	})
}

func (s *service) EscrowRelease(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID) (*models.WalletTransaction, error) {
	s.locks.Lock(walletID.String())
	defer s.locks.Unlock(walletID.String())

	repo := s.repo.WithTx(tx)
	amount, err := s.activeHoldAmount(ctx, repo, walletID, contractID)
	if err != nil {
		return nil, err
	}
	release, err := s.apply(ctx, repo, walletID, intent{
		kind:         enums.TransactionKindEscrowRelease,
		balanceDelta: amount,
		frozenDelta:  amount.Neg(),
		causeRef:     contractID.String(),
		description:  "escrow released",
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.apply(ctx, repo, walletID, intent{
		kind:        enums.TransactionKindReward,
		pointsDelta: SuccessRewardPoints,
		causeRef:    contractID.String(),
		description: "challenge success bonus",
	}); err != nil {
		return nil, err
	}
	return release, nil
}

func (s *service) EscrowForfeit(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID) (*models.WalletTransaction, error) {
	s.locks.Lock(walletID.String())
	defer s.locks.Unlock(walletID.String())

	repo := s.repo.WithTx(tx)
	amount, err := s.activeHoldAmount(ctx, repo, walletID, contractID)
	if err != nil {
		return nil, err
	}
	// Funds leave frozen without returning to balance. They are gone.
	return s.apply(ctx, repo, walletID, intent{
		kind:        enums.TransactionKindEscrowForfeit,
		frozenDelta: amount.Neg(),
		causeRef:    contractID.String(),
		description: "escrow forfeited",
	})
}

func (s *service) RedeemReviveCard(ctx context.Context, tx *gorm.DB, walletID, contractID uuid.UUID) (*models.WalletTransaction, error) {
	s.locks.Lock(walletID.String())
	defer s.locks.Unlock(walletID.String())

	repo := s.repo.WithTx(tx)
	amount, err := s.activeHoldAmount(ctx, repo, walletID, contractID)
	if err != nil {
		return nil, err
	}
	wallet, err := repo.FindWallet(ctx, walletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet.ReviveCards <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no revive card available")
	}
	release, err := s.apply(ctx, repo, walletID, intent{
		kind:         enums.TransactionKindEscrowRelease,
		balanceDelta: amount,
		frozenDelta:  amount.Neg(),
		causeRef:     contractID.String(),
		description:  "revive card redeemed",
		grant:        Grant{ReviveCards: -1},
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.apply(ctx, repo, walletID, intent{
		kind:        enums.TransactionKindReward,
		pointsDelta: SuccessRewardPoints,
		causeRef:    contractID.String(),
		description: "challenge success bonus",
	}); err != nil {
		return nil, err
	}
	return release, nil
}

// intent captures one ledger mutation before it is validated and recorded.
type intent struct {
	kind         enums.TransactionKind
	balanceDelta decimal.Decimal
	frozenDelta  decimal.Decimal
	pointsDelta  int
	causeRef     string
	description  string
	grant        Grant
}

// standalone runs a mutation in its own transaction under the wallet lock.
func (s *service) standalone(ctx context.Context, walletID uuid.UUID, in intent) (*models.WalletTransaction, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	if in.causeRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cause ref required")
	}
	s.locks.Lock(walletID.String())
	defer s.locks.Unlock(walletID.String())

	var recorded *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var applyErr error
		recorded, applyErr = s.apply(ctx, s.repo.WithTx(tx), walletID, in)
		return applyErr
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// replayOf resolves what a duplicate (kind, causeRef) pair means for the
// caller. Most kinds dedupe per wallet and replay the original row. Purchase
// credits dedupe across every wallet: a store receipt funds exactly one
// wallet, so finding the credit on a different wallet is a conflict, never a
// replay. Returns (nil, nil) when the pair has not been recorded.
func (s *service) replayOf(ctx context.Context, repo Repository, walletID uuid.UUID, in intent) (*models.WalletTransaction, error) {
	if in.kind == enums.TransactionKindPurchaseCredit {
		existing, err := repo.FindTransactionAnyWallet(ctx, in.kind, in.causeRef)
		switch {
		case err == nil && existing.WalletID == walletID:
			return existing, nil
		case err == nil:
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "receipt already credited to another wallet").WithDetails(map[string]any{
				"cause_ref": in.causeRef,
			})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, nil
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check receipt replay")
		}
	}
	existing, err := repo.FindTransaction(ctx, walletID, in.kind, in.causeRef)
	if err == nil {
		return existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction replay")
}

// apply validates preconditions, appends the transaction and updates the
// wallet snapshot. A (kind, causeRef) replay returns the original row without
// touching the wallet.
func (s *service) apply(ctx context.Context, repo Repository, walletID uuid.UUID, in intent) (*models.WalletTransaction, error) {
	existing, err := s.replayOf(ctx, repo, walletID, in)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	wallet, err := repo.FindWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	if in.balanceDelta.IsNegative() && wallet.Balance.LessThan(in.balanceDelta.Neg()) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance too low").WithDetails(map[string]any{
			"balance":  wallet.Balance.String(),
			"required": in.balanceDelta.Neg().String(),
		})
	}
	if in.pointsDelta < 0 && wallet.Points < -in.pointsDelta {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientPoints, "points too low").WithDetails(map[string]any{
			"points":   wallet.Points,
			"required": -in.pointsDelta,
		})
	}
	if in.frozenDelta.IsNegative() && wallet.Frozen.LessThan(in.frozenDelta.Neg()) {
		return nil, pkgerrors.New(pkgerrors.CodeNoActiveHold, "frozen amount below hold")
	}

	record := &models.WalletTransaction{
		ID:           uuid.New(),
		WalletID:     walletID,
		Kind:         in.kind,
		BalanceDelta: in.balanceDelta,
		FrozenDelta:  in.frozenDelta,
		PointsDelta:  in.pointsDelta,
		CauseRef:     in.causeRef,
		Description:  in.description,
	}
	if err := repo.CreateTransaction(ctx, record); err != nil {
		// A concurrent writer won the insert; resolve it the same way the
		// pre-insert check would have.
		if dbpkg.IsUniqueViolation(err, "") {
			replay, replayErr := s.replayOf(ctx, repo, walletID, in)
			if replayErr != nil {
				return nil, replayErr
			}
			if replay != nil {
				return replay, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append transaction")
	}

	deltas := WalletDeltas{
		Balance:     in.balanceDelta,
		Frozen:      in.frozenDelta,
		Points:      in.pointsDelta,
		ReviveCards: in.grant.ReviveCards,
		SetFrame:    in.grant.AvatarFrame,
	}
	if in.grant.Premium {
		premium := true
		deltas.SetPremium = &premium
	}
	if err := repo.ApplyDeltas(ctx, walletID, deltas); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet snapshot")
	}
	return record, nil
}

// activeHoldAmount locates the escrow hold for contractID and guarantees it has
// not been resolved yet. At most one of release or forfeit may ever follow a
// hold, so a prior resolution surfaces as NoActiveHold rather than a replay.
func (s *service) activeHoldAmount(ctx context.Context, repo Repository, walletID, contractID uuid.UUID) (decimal.Decimal, error) {
	if walletID == uuid.Nil || contractID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "wallet id and contract id required")
	}
	ref := contractID.String()
	hold, err := repo.FindTransaction(ctx, walletID, enums.TransactionKindEscrowHold, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNoActiveHold, "no escrow hold for contract")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow hold")
	}
	for _, kind := range []enums.TransactionKind{enums.TransactionKindEscrowRelease, enums.TransactionKindEscrowForfeit} {
		if _, err := repo.FindTransaction(ctx, walletID, kind, ref); err == nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNoActiveHold, "escrow hold already resolved")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check hold resolution")
		}
	}
	return hold.FrozenDelta, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

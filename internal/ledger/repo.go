package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	"github.com/routong/routong-backend/pkg/pagination"
)

// WalletDeltas describes an increment applied to a wallet snapshot. Numeric
// fields are applied as SQL increments so concurrent writers cannot clobber
// each other's updates.
type WalletDeltas struct {
	Balance     decimal.Decimal
	Frozen      decimal.Decimal
	Points      int
	ReviveCards int
	SetPremium  *bool
	SetFrame    *string
}

// Repository manages persistence for wallets and their transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	FindWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ApplyDeltas(ctx context.Context, walletID uuid.UUID, deltas WalletDeltas) error
	CreateTransaction(ctx context.Context, transaction *models.WalletTransaction) error
	FindTransaction(ctx context.Context, walletID uuid.UUID, kind enums.TransactionKind, causeRef string) (*models.WalletTransaction, error)
	FindTransactionAnyWallet(ctx context.Context, kind enums.TransactionKind, causeRef string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error)
	ListTransactionsOrdered(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "id = ?", walletID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) ApplyDeltas(ctx context.Context, walletID uuid.UUID, deltas WalletDeltas) error {
	updates := map[string]any{}
	if !deltas.Balance.IsZero() {
		updates["balance"] = gorm.Expr("balance + ?", deltas.Balance)
	}
	if !deltas.Frozen.IsZero() {
		updates["frozen"] = gorm.Expr("frozen + ?", deltas.Frozen)
	}
	if deltas.Points != 0 {
		updates["points"] = gorm.Expr("points + ?", deltas.Points)
	}
	if deltas.ReviveCards != 0 {
		updates["revive_cards"] = gorm.Expr("revive_cards + ?", deltas.ReviveCards)
	}
	if deltas.SetPremium != nil {
		updates["premium"] = *deltas.SetPremium
	}
	if deltas.SetFrame != nil {
		updates["avatar_frame"] = *deltas.SetFrame
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates).Error
}

func (r *repository) CreateTransaction(ctx context.Context, transaction *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindTransaction(ctx context.Context, walletID uuid.UUID, kind enums.TransactionKind, causeRef string) (*models.WalletTransaction, error) {
	var transaction models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND kind = ? AND cause_ref = ?", walletID, kind, causeRef).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// FindTransactionAnyWallet searches a (kind, causeRef) pair across every
// wallet. Receipt credits use it to keep one store receipt bound to one wallet.
func (r *repository) FindTransactionAnyWallet(ctx context.Context, kind enums.TransactionKind, causeRef string) (*models.WalletTransaction, error) {
	var transaction models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND cause_ref = ?", kind, causeRef).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	var transactions []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repository) ListTransactionsOrdered(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	var transactions []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  frozen NUMERIC NOT NULL DEFAULT 0,
  points INTEGER NOT NULL DEFAULT 0,
  revive_cards INTEGER NOT NULL DEFAULT 0,
  premium INTEGER NOT NULL DEFAULT 0,
  avatar_frame TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	walletTransactions := `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  balance_delta NUMERIC NOT NULL DEFAULT 0,
  frozen_delta NUMERIC NOT NULL DEFAULT 0,
  points_delta INTEGER NOT NULL DEFAULT 0,
  cause_ref TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  created_at DATETIME
);`
	uniqueIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_wallet_transactions_wallet_kind_cause
  ON wallet_transactions (wallet_id, kind, cause_ref);`
	receiptIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_wallet_transactions_purchase_credit_cause
  ON wallet_transactions (cause_ref) WHERE kind = 'purchase_credit';`

	for _, stmt := range []string{wallets, walletTransactions, uniqueIndex, receiptIndex} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newLedgerService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := setupLedgerTestDB(t)
	svc, err := NewService(NewRepository(db), &gormTxRunner{db: db})
	require.NoError(t, err)
	return svc, db
}

func seedWallet(t *testing.T, svc Service) *models.Wallet {
	t.Helper()
	wallet, err := svc.CreateWallet(context.Background(), nil, uuid.New())
	require.NoError(t, err)
	return wallet
}

func reloadWallet(t *testing.T, db *gorm.DB, walletID uuid.UUID) *models.Wallet {
	t.Helper()
	var wallet models.Wallet
	require.NoError(t, db.First(&wallet, "id = ?", walletID).Error)
	return &wallet
}

func TestEscrowHoldReleaseRoundTrip(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)
	contractID := uuid.New()

	_, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(100), uuid.NewString(), "initial top up")
	require.NoError(t, err)

	hold, err := svc.EscrowHold(ctx, nil, wallet.ID, contractID, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionKindEscrowHold, hold.Kind)

	held := reloadWallet(t, db, wallet.ID)
	assert.True(t, held.Balance.Equal(decimal.NewFromInt(60)), "balance after hold: %s", held.Balance)
	assert.True(t, held.Frozen.Equal(decimal.NewFromInt(40)), "frozen after hold: %s", held.Frozen)

	release, err := svc.EscrowRelease(ctx, nil, wallet.ID, contractID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionKindEscrowRelease, release.Kind)

	released := reloadWallet(t, db, wallet.ID)
	assert.True(t, released.Balance.Equal(decimal.NewFromInt(100)), "balance after release: %s", released.Balance)
	assert.True(t, released.Frozen.Equal(decimal.Zero), "frozen after release: %s", released.Frozen)
	assert.Equal(t, SuccessRewardPoints, released.Points)

	_, err = svc.EscrowRelease(ctx, nil, wallet.ID, contractID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNoActiveHold))
}

func TestEscrowHoldInsufficientFunds(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)

	_, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(30), uuid.NewString(), "initial top up")
	require.NoError(t, err)

	_, err = svc.EscrowHold(ctx, nil, wallet.ID, uuid.New(), decimal.NewFromInt(50))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds))

	unchanged := reloadWallet(t, db, wallet.ID)
	assert.True(t, unchanged.Balance.Equal(decimal.NewFromInt(30)))
	assert.True(t, unchanged.Frozen.Equal(decimal.Zero))

	var count int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).
		Where("wallet_id = ? AND kind = ?", wallet.ID, enums.TransactionKindEscrowHold).
		Count(&count).Error)
	assert.Zero(t, count, "rejected hold must not append a transaction")
}

func TestEscrowForfeitBurnsFrozenFunds(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)
	contractID := uuid.New()

	_, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(100), uuid.NewString(), "initial top up")
	require.NoError(t, err)
	_, err = svc.EscrowHold(ctx, nil, wallet.ID, contractID, decimal.NewFromInt(40))
	require.NoError(t, err)

	forfeit, err := svc.EscrowForfeit(ctx, nil, wallet.ID, contractID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionKindEscrowForfeit, forfeit.Kind)

	after := reloadWallet(t, db, wallet.ID)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(60)), "forfeited funds never return: %s", after.Balance)
	assert.True(t, after.Frozen.Equal(decimal.Zero))
	assert.Zero(t, after.Points)

	_, err = svc.EscrowRelease(ctx, nil, wallet.ID, contractID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNoActiveHold))

	_, err = svc.EscrowForfeit(ctx, nil, wallet.ID, contractID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNoActiveHold))
}

func TestTopUpReplayReturnsOriginalTransaction(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)
	causeRef := uuid.NewString()

	first, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(25), causeRef, "top up")
	require.NoError(t, err)
	second, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(25), causeRef, "top up")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	after := reloadWallet(t, db, wallet.ID)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(25)), "replay must not credit twice: %s", after.Balance)
}

func TestPurchaseCreditReceiptBoundToOneWallet(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	first := seedWallet(t, svc)
	second := seedWallet(t, svc)
	receiptID := "store-receipt-001"

	credit, err := svc.PurchaseCredit(ctx, first.ID, decimal.RequireFromString("12.6"), receiptID, "purchase credit")
	require.NoError(t, err)

	replay, err := svc.PurchaseCredit(ctx, first.ID, decimal.RequireFromString("12.6"), receiptID, "purchase credit")
	require.NoError(t, err)
	assert.Equal(t, credit.ID, replay.ID)

	// The same receipt submitted from another account must never credit a
	// second wallet.
	_, err = svc.PurchaseCredit(ctx, second.ID, decimal.RequireFromString("12.6"), receiptID, "purchase credit")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	var count int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).
		Where("kind = ? AND cause_ref = ?", enums.TransactionKindPurchaseCredit, receiptID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)

	untouched := reloadWallet(t, db, second.ID)
	assert.True(t, untouched.Balance.IsZero(), "second wallet balance: %s", untouched.Balance)
}

func TestSpendPointsRecordsPointsDebit(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)

	require.NoError(t, db.Model(&models.Wallet{}).Where("id = ?", wallet.ID).Update("points", 50).Error)

	spend, err := svc.SpendPoints(ctx, wallet.ID, 30, Grant{AvatarFrame: strPtr("neon")}, uuid.NewString(), "avatar frame")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionKindPointsDebit, spend.Kind)
	assert.True(t, spend.BalanceDelta.IsZero())
	assert.Equal(t, -30, spend.PointsDelta)

	after := reloadWallet(t, db, wallet.ID)
	assert.Equal(t, 20, after.Points)
}

func TestRedeemReviveCard(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)
	contractID := uuid.New()

	_, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(100), uuid.NewString(), "initial top up")
	require.NoError(t, err)
	_, err = svc.SpendBalance(ctx, wallet.ID, decimal.NewFromInt(3), Grant{ReviveCards: 1}, uuid.NewString(), "revive card x1")
	require.NoError(t, err)
	_, err = svc.EscrowHold(ctx, nil, wallet.ID, contractID, decimal.NewFromInt(50))
	require.NoError(t, err)

	release, err := svc.RedeemReviveCard(ctx, nil, wallet.ID, contractID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionKindEscrowRelease, release.Kind)

	after := reloadWallet(t, db, wallet.ID)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(97)), "balance after redeem: %s", after.Balance)
	assert.True(t, after.Frozen.Equal(decimal.Zero))
	assert.Equal(t, 0, after.ReviveCards)
	assert.Equal(t, SuccessRewardPoints, after.Points)

	_, err = svc.EscrowForfeit(ctx, nil, wallet.ID, contractID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNoActiveHold))
}

func TestRedeemReviveCardWithoutCard(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)
	contractID := uuid.New()

	_, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(20), uuid.NewString(), "initial top up")
	require.NoError(t, err)
	_, err = svc.EscrowHold(ctx, nil, wallet.ID, contractID, decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = svc.RedeemReviveCard(ctx, nil, wallet.ID, contractID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestSpendPointsInsufficient(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)

	_, err := svc.SpendPoints(ctx, wallet.ID, 100, Grant{AvatarFrame: strPtr("neon")}, uuid.NewString(), "avatar frame")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientPoints))

	after := reloadWallet(t, db, wallet.ID)
	assert.Zero(t, after.Points)
	assert.Nil(t, after.AvatarFrame)
}

func TestReplayMatchesSnapshot(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()
	wallet := seedWallet(t, svc)
	won := uuid.New()
	lost := uuid.New()

	_, err := svc.TopUp(ctx, wallet.ID, decimal.NewFromInt(200), uuid.NewString(), "initial top up")
	require.NoError(t, err)
	_, err = svc.EscrowHold(ctx, nil, wallet.ID, won, decimal.NewFromInt(60))
	require.NoError(t, err)
	_, err = svc.EscrowRelease(ctx, nil, wallet.ID, won)
	require.NoError(t, err)
	_, err = svc.EscrowHold(ctx, nil, wallet.ID, lost, decimal.NewFromInt(30))
	require.NoError(t, err)
	_, err = svc.EscrowForfeit(ctx, nil, wallet.ID, lost)
	require.NoError(t, err)
	_, err = svc.SpendBalance(ctx, wallet.ID, decimal.NewFromInt(8), Grant{ReviveCards: 3}, uuid.NewString(), "revive card x3")
	require.NoError(t, err)

	projection, err := svc.Replay(ctx, wallet.ID)
	require.NoError(t, err)

	snapshot := reloadWallet(t, db, wallet.ID)
	assert.True(t, projection.Balance.Equal(snapshot.Balance), "fold %s vs snapshot %s", projection.Balance, snapshot.Balance)
	assert.True(t, projection.Frozen.Equal(snapshot.Frozen))
	assert.Equal(t, snapshot.Points, projection.Points)
	assert.True(t, snapshot.Balance.Equal(decimal.NewFromInt(162)))
	assert.True(t, snapshot.Frozen.Equal(decimal.Zero))
	assert.Equal(t, SuccessRewardPoints, snapshot.Points)
}

func strPtr(s string) *string {
	return &s
}

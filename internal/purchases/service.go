package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/internal/ledger"
	"github.com/routong/routong-backend/pkg/appstore"
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

// Receipt is a payment the processor has already attested. The reconciler
// never charges anyone; it only converts verified receipts into credits.
type Receipt struct {
	ReceiptID        string
	GrossAmount      decimal.Decimal
	ProcessorFeeRate decimal.Decimal
	VerifiedAt       time.Time
}

// Service turns verified purchase receipts into wallet credits, exactly once
// per receipt.
type Service interface {
	SubmitReceipt(ctx context.Context, userID uuid.UUID, receiptData string) (*models.WalletTransaction, error)
	Reconcile(ctx context.Context, walletID uuid.UUID, receipt Receipt) (*models.WalletTransaction, error)
}

type service struct {
	ledger   ledger.Service
	verifier appstore.Verifier
	outbox   *outbox.Service
	tx       txRunner
	logg     *logger.Logger
}

// NewService wires the purchase reconciler.
func NewService(ledgerSvc ledger.Service, verifier appstore.Verifier, outboxSvc *outbox.Service, tx txRunner, logg *logger.Logger) (Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("receipt verifier required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{ledger: ledgerSvc, verifier: verifier, outbox: outboxSvc, tx: tx, logg: logg}, nil
}

// SubmitReceipt verifies a raw store receipt, maps its product to a top-up
// tier and credits the owner's wallet net of the processor fee.
func (s *service) SubmitReceipt(ctx context.Context, userID uuid.UUID, receiptData string) (*models.WalletTransaction, error) {
	verified, err := s.verifier.Verify(ctx, receiptData)
	if err != nil {
		return nil, err
	}

	product, ok := LookupTopUpProduct(verified.ProductID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnverifiedReceipt, "unknown product in receipt").WithDetails(map[string]any{
			"product_id": verified.ProductID,
		})
	}

	wallet, err := s.ledger.WalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.Reconcile(ctx, wallet.ID, Receipt{
		ReceiptID:        verified.TransactionID,
		GrossAmount:      product.GrossAmount.Mul(decimal.NewFromInt(int64(verified.Quantity))),
		ProcessorFeeRate: ProcessorFeeRate,
		VerifiedAt:       verified.PurchasedAt,
	})
}

// Reconcile credits netAmount = gross * (1 - feeRate). The receipt id is the
// cause ref, so a redelivered receipt returns the original credit and a
// receipt already credited to a different wallet is rejected.
func (s *service) Reconcile(ctx context.Context, walletID uuid.UUID, receipt Receipt) (*models.WalletTransaction, error) {
	if receipt.ReceiptID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}
	if !receipt.GrossAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}
	if receipt.ProcessorFeeRate.IsNegative() || receipt.ProcessorFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fee rate must be within [0, 1)")
	}
	if receipt.VerifiedAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnverifiedReceipt, "receipt has not been verified")
	}

	netAmount := receipt.GrossAmount.Mul(decimal.NewFromInt(1).Sub(receipt.ProcessorFeeRate))
	credit, err := s.ledger.PurchaseCredit(ctx, walletID, netAmount, receipt.ReceiptID, "purchase credit")
	if err != nil {
		return nil, err
	}

	// A redelivered receipt replays the original credit with the same
	// transaction id, so the (event, transaction) pair dedupes the event.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseCredited,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   credit.ID,
			Version:       1,
			OccurredAt:    credit.CreatedAt,
			Data: payloads.PurchaseCreditedEvent{
				WalletID:   walletID,
				ReceiptID:  receipt.ReceiptID,
				NetAmount:  netAmount,
				CreditedAt: credit.CreatedAt,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue purchase event")
	}

	ctx = s.logg.WithWalletID(ctx, walletID.String())
	s.logg.Info(ctx, fmt.Sprintf("reconciled receipt %s for %s net", receipt.ReceiptID, netAmount))
	return credit, nil
}

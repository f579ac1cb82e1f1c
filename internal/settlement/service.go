package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/routong/routong-backend/internal/contracts"
	"github.com/routong/routong-backend/internal/ledger"
	"github.com/routong/routong-backend/internal/purchases"
	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/metrics"
)

// Overview is the wallet state served to the app's home screen.
type Overview struct {
	Wallet       *models.Wallet
	Transactions []models.WalletTransaction
}

// Service is the façade the rest of the application calls. It composes the
// ledger, the contract state machine and the purchase reconciler.
type Service interface {
	CreateContract(ctx context.Context, input contracts.CreateInput) (*models.Contract, error)
	SubmitEvidence(ctx context.Context, input contracts.EvidenceInput) (*models.Contract, error)
	Contract(ctx context.Context, contractID, ownerID uuid.UUID) (*models.Contract, error)
	Contracts(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error)
	Tick(ctx context.Context) (int, error)
	ReconcilePurchase(ctx context.Context, walletID uuid.UUID, receipt purchases.Receipt) (*models.WalletTransaction, error)
	SubmitReceipt(ctx context.Context, userID uuid.UUID, receiptData string) (*models.WalletTransaction, error)
	WalletOverview(ctx context.Context, userID uuid.UUID, limit int) (*Overview, error)
}

type service struct {
	ledger     ledger.Service
	contracts  contracts.Service
	purchases  purchases.Service
	metrics    *metrics.SettlementMetrics
	sweepLimit int
}

// NewService wires the settlement façade. sweepLimit caps how many overdue
// contracts a single Tick settles.
func NewService(ledgerSvc ledger.Service, contractSvc contracts.Service, purchaseSvc purchases.Service, settlementMetrics *metrics.SettlementMetrics, sweepLimit int) (Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if contractSvc == nil {
		return nil, fmt.Errorf("contract service required")
	}
	if purchaseSvc == nil {
		return nil, fmt.Errorf("purchase service required")
	}
	if sweepLimit <= 0 {
		sweepLimit = 100
	}
	return &service{
		ledger:     ledgerSvc,
		contracts:  contractSvc,
		purchases:  purchaseSvc,
		metrics:    settlementMetrics,
		sweepLimit: sweepLimit,
	}, nil
}

func (s *service) CreateContract(ctx context.Context, input contracts.CreateInput) (*models.Contract, error) {
	return s.contracts.Create(ctx, input)
}

func (s *service) SubmitEvidence(ctx context.Context, input contracts.EvidenceInput) (*models.Contract, error) {
	contract, err := s.contracts.SubmitEvidence(ctx, input)
	if err != nil {
		return nil, err
	}
	s.metrics.IncSettlement(string(contract.Status))
	return contract, nil
}

func (s *service) Contract(ctx context.Context, contractID, ownerID uuid.UUID) (*models.Contract, error) {
	return s.contracts.Get(ctx, contractID, ownerID)
}

func (s *service) Contracts(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error) {
	return s.contracts.ListByOwner(ctx, ownerID, limit)
}

// Tick sweeps overdue contracts. Safe to call from any number of schedulers;
// settlements are serialized per contract and reject double resolution.
func (s *service) Tick(ctx context.Context) (int, error) {
	settled, err := s.contracts.SweepExpired(ctx, s.sweepLimit)
	for i := 0; i < settled; i++ {
		s.metrics.IncSettlement("expired")
	}
	return settled, err
}

func (s *service) ReconcilePurchase(ctx context.Context, walletID uuid.UUID, receipt purchases.Receipt) (*models.WalletTransaction, error) {
	credit, err := s.purchases.Reconcile(ctx, walletID, receipt)
	if err != nil {
		return nil, err
	}
	s.metrics.IncPurchase()
	return credit, nil
}

func (s *service) SubmitReceipt(ctx context.Context, userID uuid.UUID, receiptData string) (*models.WalletTransaction, error) {
	credit, err := s.purchases.SubmitReceipt(ctx, userID, receiptData)
	if err != nil {
		return nil, err
	}
	s.metrics.IncPurchase()
	return credit, nil
}

func (s *service) WalletOverview(ctx context.Context, userID uuid.UUID, limit int) (*Overview, error) {
	wallet, err := s.ledger.WalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.ledger.Transactions(ctx, wallet.ID, limit)
	if err != nil {
		return nil, err
	}
	return &Overview{Wallet: wallet, Transactions: transactions}, nil
}

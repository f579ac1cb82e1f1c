package shop

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/routong/routong-backend/internal/ledger"
	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
)

// Service sells catalog items against wallet balance or points.
type Service interface {
	Catalog(ctx context.Context) []Item
	Purchase(ctx context.Context, userID uuid.UUID, itemID, idempotencyKey string) (*models.WalletTransaction, error)
}

type service struct {
	ledger ledger.Service
	logg   *logger.Logger
}

// NewService wires the shop.
func NewService(ledgerSvc ledger.Service, logg *logger.Logger) (Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{ledger: ledgerSvc, logg: logg}, nil
}

func (s *service) Catalog(ctx context.Context) []Item {
	return Catalog()
}

// Purchase debits the wallet once per idempotency key and grants the item.
func (s *service) Purchase(ctx context.Context, userID uuid.UUID, itemID, idempotencyKey string) (*models.WalletTransaction, error) {
	item, ok := LookupItem(itemID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown shop item")
	}
	if idempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}

	wallet, err := s.ledger.WalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	grant := ledger.Grant{ReviveCards: item.ReviveCards}
	switch item.Kind {
	case enums.ShopItemKindPremium:
		grant.Premium = true
	case enums.ShopItemKindAvatarFrame:
		frame := item.Frame
		grant.AvatarFrame = &frame
	}

	causeRef := fmt.Sprintf("%s:%s", item.ID, idempotencyKey)
	if item.PointsPrice > 0 {
		return s.ledger.SpendPoints(ctx, wallet.ID, item.PointsPrice, grant, causeRef, item.Name)
	}
	return s.ledger.SpendBalance(ctx, wallet.ID, item.Price, grant, causeRef, item.Name)
}

package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routong/routong-backend/internal/contracts"
	"github.com/routong/routong-backend/internal/purchases"
	"github.com/routong/routong-backend/internal/settlement"
	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
)

type testSettlementService struct {
	createFn         func(ctx context.Context, input contracts.CreateInput) (*models.Contract, error)
	submitEvidenceFn func(ctx context.Context, input contracts.EvidenceInput) (*models.Contract, error)
	contractFn       func(ctx context.Context, contractID, ownerID uuid.UUID) (*models.Contract, error)
	contractsFn      func(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error)
	submitReceiptFn  func(ctx context.Context, userID uuid.UUID, receiptData string) (*models.WalletTransaction, error)
	walletOverviewFn func(ctx context.Context, userID uuid.UUID, limit int) (*settlement.Overview, error)
}

func (s *testSettlementService) CreateContract(ctx context.Context, input contracts.CreateInput) (*models.Contract, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Contract{ID: uuid.New()}, nil
}

func (s *testSettlementService) SubmitEvidence(ctx context.Context, input contracts.EvidenceInput) (*models.Contract, error) {
	if s.submitEvidenceFn != nil {
		return s.submitEvidenceFn(ctx, input)
	}
	return &models.Contract{ID: input.ContractID}, nil
}

func (s *testSettlementService) Contract(ctx context.Context, contractID, ownerID uuid.UUID) (*models.Contract, error) {
	if s.contractFn != nil {
		return s.contractFn(ctx, contractID, ownerID)
	}
	return &models.Contract{ID: contractID}, nil
}

func (s *testSettlementService) Contracts(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Contract, error) {
	if s.contractsFn != nil {
		return s.contractsFn(ctx, ownerID, limit)
	}
	return nil, nil
}

func (s *testSettlementService) Tick(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *testSettlementService) ReconcilePurchase(ctx context.Context, walletID uuid.UUID, receipt purchases.Receipt) (*models.WalletTransaction, error) {
	return nil, nil
}

func (s *testSettlementService) SubmitReceipt(ctx context.Context, userID uuid.UUID, receiptData string) (*models.WalletTransaction, error) {
	if s.submitReceiptFn != nil {
		return s.submitReceiptFn(ctx, userID, receiptData)
	}
	return &models.WalletTransaction{ID: uuid.New()}, nil
}

func (s *testSettlementService) WalletOverview(ctx context.Context, userID uuid.UUID, limit int) (*settlement.Overview, error) {
	if s.walletOverviewFn != nil {
		return s.walletOverviewFn(ctx, userID, limit)
	}
	return &settlement.Overview{Wallet: &models.Wallet{UserID: userID}}, nil
}

func TestContractCreateSuccess(t *testing.T) {
	ownerID := uuid.New()
	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	svc := &testSettlementService{
		createFn: func(ctx context.Context, input contracts.CreateInput) (*models.Contract, error) {
			if input.OwnerID != ownerID {
				t.Fatalf("unexpected owner %s", input.OwnerID)
			}
			if !input.PledgeAmount.Equal(decimal.RequireFromString("50")) {
				t.Fatalf("unexpected pledge %s", input.PledgeAmount)
			}
			if !input.Deadline.Equal(deadline) {
				t.Fatalf("unexpected deadline %s", input.Deadline)
			}
			if input.VerificationMethod != enums.VerificationMethodPhoto {
				t.Fatalf("unexpected method %s", input.VerificationMethod)
			}
			if input.ShameRelationship != enums.ShameRelationshipEx {
				t.Fatalf("unexpected relationship %s", input.ShameRelationship)
			}
			return &models.Contract{ID: uuid.New(), UserID: ownerID, Status: enums.ContractStatusActive}, nil
		},
	}

	body := `{
		"title": "Run every morning",
		"pledge_amount": "50",
		"deadline": "` + deadline.Format(time.RFC3339) + `",
		"verification_method": "photo",
		"shame_target_name": "Wei",
		"shame_target_phone": "+8613800138000",
		"shame_relationship": "ex"
	}`
	req := authedRequest(http.MethodPost, "/api/v1/contracts", ownerID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	ContractCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestContractCreateRejectsBadPledge(t *testing.T) {
	body := `{
		"title": "Run every morning",
		"pledge_amount": "fifty",
		"deadline": "2026-09-30T00:00:00Z",
		"verification_method": "photo",
		"shame_target_name": "Wei",
		"shame_target_phone": "+8613800138000",
		"shame_relationship": "ex"
	}`
	req := authedRequest(http.MethodPost, "/api/v1/contracts", uuid.New(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	ContractCreate(&testSettlementService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestContractCreateRejectsUnknownMethod(t *testing.T) {
	body := `{
		"title": "Run every morning",
		"pledge_amount": "50",
		"deadline": "2026-09-30T00:00:00Z",
		"verification_method": "vibes",
		"shame_target_name": "Wei",
		"shame_target_phone": "+8613800138000",
		"shame_relationship": "ex"
	}`
	req := authedRequest(http.MethodPost, "/api/v1/contracts", uuid.New(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	ContractCreate(&testSettlementService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestContractDetailScopedToCaller(t *testing.T) {
	ownerID := uuid.New()
	contractID := uuid.New()
	svc := &testSettlementService{
		contractFn: func(ctx context.Context, cid, oid uuid.UUID) (*models.Contract, error) {
			if cid != contractID || oid != ownerID {
				t.Fatalf("unexpected lookup %s/%s", cid, oid)
			}
			return &models.Contract{ID: cid, UserID: oid}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/contracts/"+contractID.String(), ownerID, nil)
	req = withURLParam(req, "contractId", contractID.String())

	resp := httptest.NewRecorder()
	ContractDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestContractSubmitEvidencePassesReviveFlag(t *testing.T) {
	ownerID := uuid.New()
	contractID := uuid.New()
	svc := &testSettlementService{
		submitEvidenceFn: func(ctx context.Context, input contracts.EvidenceInput) (*models.Contract, error) {
			if !input.UseReviveCard {
				t.Fatal("expected revive card flag")
			}
			if string(input.Evidence) != "photo-blob" {
				t.Fatalf("unexpected evidence %q", input.Evidence)
			}
			return &models.Contract{ID: contractID, Status: enums.ContractStatusCompleted}, nil
		},
	}

	body := `{"evidence": "photo-blob", "use_revive_card": true}`
	req := authedRequest(http.MethodPost, "/api/v1/contracts/"+contractID.String()+"/evidence", ownerID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParam(req, "contractId", contractID.String())

	resp := httptest.NewRecorder()
	ContractSubmitEvidence(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestContractListUsesLimit(t *testing.T) {
	ownerID := uuid.New()
	svc := &testSettlementService{
		contractsFn: func(ctx context.Context, oid uuid.UUID, limit int) ([]models.Contract, error) {
			if limit != 7 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []models.Contract{{ID: uuid.New(), UserID: oid}}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/contracts?limit=7", ownerID, nil)
	resp := httptest.NewRecorder()
	ContractList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routong/routong-backend/api/middleware"
	"github.com/routong/routong-backend/api/responses"
	"github.com/routong/routong-backend/api/validators"
	"github.com/routong/routong-backend/internal/contracts"
	"github.com/routong/routong-backend/internal/settlement"
	"github.com/routong/routong-backend/pkg/enums"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
)

type createContractRequest struct {
	Title              string `json:"title" validate:"required,min=2,max=80"`
	Description        string `json:"description" validate:"max=500"`
	PledgeAmount       string `json:"pledge_amount" validate:"required"`
	Deadline           string `json:"deadline" validate:"required"`
	VerificationMethod string `json:"verification_method" validate:"required"`
	ShameTargetName    string `json:"shame_target_name" validate:"required,min=1,max=40"`
	ShameTargetPhone   string `json:"shame_target_phone" validate:"required,e164"`
	ShameRelationship  string `json:"shame_relationship" validate:"required"`
}

type submitEvidenceRequest struct {
	Evidence      string `json:"evidence" validate:"required"`
	UseReviveCard bool   `json:"use_revive_card"`
}

func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// ContractCreate stakes a pledge and opens a new contract.
func ContractCreate(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		ownerID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createContractRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pledge, err := decimal.NewFromString(body.PledgeAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pledge amount"))
			return
		}

		deadline, err := time.Parse(time.RFC3339, body.Deadline)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid deadline"))
			return
		}

		method, err := enums.ParseVerificationMethod(body.VerificationMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid verification method"))
			return
		}

		relationship, err := enums.ParseShameRelationship(body.ShameRelationship)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shame relationship"))
			return
		}

		contract, err := svc.CreateContract(r.Context(), contracts.CreateInput{
			OwnerID:            ownerID,
			Title:              validators.SanitizeString(body.Title, 80),
			Description:        validators.SanitizeString(body.Description, 500),
			PledgeAmount:       pledge,
			Deadline:           deadline,
			VerificationMethod: method,
			ShameTargetName:    validators.SanitizeString(body.ShameTargetName, 40),
			ShameTargetPhone:   body.ShameTargetPhone,
			ShameRelationship:  relationship,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, contract)
	}
}

// ContractList returns the caller's contracts, newest first.
func ContractList(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		ownerID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Contracts(r.Context(), ownerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ContractDetail returns a single contract owned by the caller.
func ContractDetail(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		ownerID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		contract, err := svc.Contract(r.Context(), contractID, ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contract)
	}
}

// ContractSubmitEvidence records a completion attempt and settles the contract.
func ContractSubmitEvidence(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		ownerID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		var body submitEvidenceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contract, err := svc.SubmitEvidence(r.Context(), contracts.EvidenceInput{
			ContractID:    contractID,
			OwnerID:       ownerID,
			Evidence:      []byte(body.Evidence),
			UseReviveCard: body.UseReviveCard,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contract)
	}
}

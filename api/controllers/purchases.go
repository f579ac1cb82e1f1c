package controllers

import (
	"net/http"

	"github.com/routong/routong-backend/api/responses"
	"github.com/routong/routong-backend/api/validators"
	"github.com/routong/routong-backend/internal/settlement"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
)

type receiptRequest struct {
	ReceiptData string `json:"receipt_data" validate:"required"`
}

// PurchaseSubmitReceipt verifies a store receipt and credits the caller's
// wallet. Replays of the same transaction return the original credit.
func PurchaseSubmitReceipt(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body receiptRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		credit, err := svc.SubmitReceipt(r.Context(), userID, body.ReceiptData)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, credit)
	}
}

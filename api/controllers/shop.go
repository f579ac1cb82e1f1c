package controllers

import (
	"net/http"

	"github.com/routong/routong-backend/api/responses"
	"github.com/routong/routong-backend/api/validators"
	"github.com/routong/routong-backend/internal/shop"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
)

type purchaseRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

// ShopCatalog lists the items redeemable with points.
func ShopCatalog(svc shop.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.Catalog(r.Context()))
	}
}

// ShopPurchase redeems points for a catalog item. The Idempotency-Key header
// dedupes retried submissions at the ledger level.
func ShopPurchase(svc shop.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body purchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Purchase(r.Context(), userID, body.ItemID, r.Header.Get("Idempotency-Key"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

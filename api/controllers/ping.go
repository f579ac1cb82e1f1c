package controllers

import (
	"net/http"

	"github.com/routong/routong-backend/api/middleware"
	"github.com/routong/routong-backend/api/responses"
)

func pingPayload(scope string) map[string]string {
	return map[string]string{"scope": scope, "status": "ok"}
}

// PublicPing answers unauthenticated liveness probes.
func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingPayload("public"))
	}
}

// PrivatePing echoes the authenticated caller's id, confirming the token path.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := pingPayload("private")
		if user := middleware.UserIDFromContext(r.Context()); user != "" {
			payload["user_id"] = user
		}
		responses.WriteSuccess(w, payload)
	}
}

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var allowedOrigins = []string{
	"http://localhost:3000", // local dev
	"https://app.routong.cn",
	"https://routong.cn",
}

// CORS applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // web dev
	"http://localhost:8081", // expo dev
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", DeviceIDHeader, IdempotencyKeyHeader, "X-Requested-With"},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After", IdempotentReplayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

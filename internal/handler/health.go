package handler

import "net/http"

// HealthPath is the one route reachable without a bearer token.
const HealthPath = "/health"

// Health is the health check endpoint. It returns an empty success body
// and is exempt from authentication.
//
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

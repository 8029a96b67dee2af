package core

import "net/http"

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth reports process liveness. The service holds no stateful
// dependencies (no database, no queues), so reaching the handler at all
// means the service is healthy; Stripe reachability is intentionally not
// probed here because an upstream outage should not fail our liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
}

package http

// AcceptedResponse is the response body for POST /api/requests.
type AcceptedResponse struct {
	ID      string `json:"id"`
	TraceID string `json:"traceId,omitempty"`
	Status  string `json:"status"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusAccepted is the status reported for a stored request.
const StatusAccepted = "accepted"

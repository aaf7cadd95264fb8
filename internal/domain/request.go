package domain

// CreateResearchRequest is the body of POST /api/research.
type CreateResearchRequest struct {
	Query string `json:"query"`
}

// CreateResearchResponse is returned after a session is created.
type CreateResearchResponse struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	Message   string        `json:"message"`
}

// ErrorResponse is the JSON body of failed API calls.
type ErrorResponse struct {
	Error string `json:"error"`
}

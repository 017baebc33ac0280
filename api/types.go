package api

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the uniform payload for operations without data.
type MessageResponse struct {
	Message string `json:"message"`
}

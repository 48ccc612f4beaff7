package response

type StandardApiResponse struct {
	Success bool        `json:"success"`           // true on 2xx envelopes
	Message string      `json:"message,omitempty"` // Human-readable message
	Data    interface{} `json:"data,omitempty"`    // Payload for success
	Errors  []string    `json:"errors,omitempty"`  // Validation or error details
}

package responses

// SuccessEnvelope wraps every 2xx payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. RequestID echoes X-Request-Id so
// clients can quote it when reporting a failure.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

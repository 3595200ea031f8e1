// Package types holds the JSON envelopes every storefront endpoint answers with.
package types

// SuccessEnvelope wraps a successful payload as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a failed request. Step names the merge
// stage that failed for CART_MERGE_FAILED; Retryable tells the client whether
// it should keep its local cart and try again.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Step      string `json:"step,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError as {"error": ...}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

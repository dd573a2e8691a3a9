package types

import "fmt"

// Error codes, one per expected failure class. Every component that can
// fail a request returns a *PaymentError tagged with one of these; the
// server layer alone maps codes to HTTP statuses.
const (
	// Input errors: malformed caller input, retryable after correction.
	ErrInvalidRequest = "INVALID_REQUEST"
	ErrInvalidJSON    = "INVALID_JSON"

	// Header/codec errors: malformed payment token.
	ErrInvalidPaymentHeader = "INVALID_PAYMENT_HEADER"
	ErrUnsupportedScheme    = "UNSUPPORTED_SCHEME"
	ErrMissingSignature     = "MISSING_SIGNATURE"

	// Business-rule mismatches: exact equality required, never coerced.
	ErrWrongNetwork   = "WRONG_NETWORK"
	ErrWrongRecipient = "WRONG_RECIPIENT"
	ErrWrongAmount    = "WRONG_AMOUNT"
	ErrInvalidPrice   = "INVALID_PRICE"

	// Cryptographic failure: treated as potentially adversarial.
	ErrInvalidSignature = "INVALID_SIGNATURE"

	// Upstream trust-boundary failure.
	ErrVerifyFailed = "VERIFY_FAILED"

	// Fulfillment failures after the client already paid or the
	// facilitator already verified. Flagged for manual reconciliation.
	ErrSettlementFailed = "SETTLEMENT_FAILED"
	ErrMusicError       = "MUSIC_ERROR"
)

// PaymentError is a typed, request-scoped failure. It is a value the
// orchestrator returns, not a crash condition.
type PaymentError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError constructs a PaymentError without detail.
func NewPaymentError(code, message string) *PaymentError {
	return &PaymentError{Code: code, Message: message}
}

// NewPaymentErrorDetail constructs a PaymentError carrying diagnostic detail.
func NewPaymentErrorDetail(code, message string, detail interface{}) *PaymentError {
	return &PaymentError{Code: code, Message: message, Detail: detail}
}

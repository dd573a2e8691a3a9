// Package types defines the wire and domain types shared across the x402
// payment core: payment requirements, the client payment header envelope,
// the EIP-3009 authorization, and the typed results the orchestrator
// branches on.
package types

import "fmt"

// X402Version is the protocol version this service speaks.
const X402Version = 1

// SchemeExact is the single supported payment scheme: an exact-amount
// EIP-3009 transfer authorization.
const SchemeExact = "exact"

// PaymentRequirements describes what a caller must pay for a resource.
// It is sent verbatim in the 402 body and echoed (re-derived server-side,
// never trusted from the client) to the facilitator during verification.
type PaymentRequirements struct {
	// Scheme of the payment protocol, always "exact".
	Scheme string `json:"scheme"`

	// Network the payment must be signed for (e.g. "base-sepolia").
	Network string `json:"network"`

	// Maximum amount required in atomic units of the asset, as a decimal
	// string because Go has no uint256.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource is the absolute URL being paid for.
	Resource string `json:"resource"`

	// Description of the resource being purchased.
	Description string `json:"description"`

	// MimeType of the resource response.
	MimeType string `json:"mimeType"`

	// OutputSchema hints at the shape of the paid response.
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`

	// PayTo is the address payment must be sent to.
	PayTo string `json:"payTo"`

	// MaxTimeoutSeconds the server may take to respond.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Asset is the EIP-3009 compliant token contract address.
	Asset string `json:"asset"`

	// Extra carries the typed-data domain metadata for the asset,
	// for the exact scheme: {"name": ..., "version": ...}.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequiredResponse is the 402 body.
type PaymentRequiredResponse struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error,omitempty"`
}

// PaymentPayload is the decoded X-PAYMENT header envelope.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// ExactEvmPayload carries the signed EIP-3009 authorization.
type ExactEvmPayload struct {
	// Signature is the 65-byte hex signature over the typed data.
	Signature string `json:"signature"`

	Authorization Authorization `json:"authorization"`
}

// Authorization is the EIP-3009 TransferWithAuthorization tuple the payer
// committed to. All numeric fields are decimal strings; Nonce is 32-byte hex.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256
	ValidAfter  string `json:"validAfter"`  // uint256 unix seconds
	ValidBefore string `json:"validBefore"` // uint256 unix seconds
	Nonce       string `json:"nonce"`       // bytes32
}

// VerificationResult is the facilitator's answer, reshaped into a tagged
// result the orchestrator branches on explicitly.
type VerificationResult struct {
	OK bool

	// Success fields.
	AmountPaidAtomic string
	Raw              map[string]interface{}

	// Failure fields. Status is nil when the facilitator was unreachable.
	Status  *int
	Message string
	Detail  string
}

// SettlementReceipt is produced only when local settlement broadcasting ran.
type SettlementReceipt struct {
	TxHash string `json:"txHash"`
}

// MusicInput is the paid-work request payload.
type MusicInput struct {
	Prompt  string `json:"prompt" validate:"required,min=1"`
	Seconds int    `json:"seconds" validate:"required,gte=5,lte=120"`
}

// MusicOutput is what the paid-work collaborator produces.
type MusicOutput struct {
	TrackUrl      string `json:"trackUrl"`
	RefinedPrompt string `json:"refinedPrompt,omitempty"`
}

// ConfirmRequest is the body of POST /api/x402/confirm.
type ConfirmRequest struct {
	Input         MusicInput `json:"input"`
	PaymentHeader string     `json:"paymentHeader"`
}

// Price is the breakdown echoed in success responses. Cents is display
// only and never feeds back into the atomic amount.
type Price struct {
	Cents        float64 `json:"cents"`
	AmountAtomic string  `json:"amountAtomic"`
}

// ConfirmResponse is the success body of the confirm endpoint.
type ConfirmResponse struct {
	OK               bool   `json:"ok"`
	TrackUrl         string `json:"trackUrl"`
	RefinedPrompt    string `json:"refinedPrompt,omitempty"`
	Price            Price  `json:"price"`
	RequestID        string `json:"requestId"`
	Provider         string `json:"provider,omitempty"`
	SettlementTxHash string `json:"settlementTxHash,omitempty"`
}

// InvokeResponse is the success body of the paid invoke route.
type InvokeResponse struct {
	Output MusicOutput `json:"output"`
	Model  string      `json:"model,omitempty"`
}

// ErrorResponse is the failure body shared by all routes.
type ErrorResponse struct {
	OK      bool        `json:"ok"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

func (p *PaymentRequirements) Validate() error {
	if p.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}
	if p.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}
	if p.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}
	if p.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}
	if p.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}
	if p.MaxTimeoutSeconds <= 0 {
		return fmt.Errorf("paymentRequirements.maxTimeoutSeconds must be greater than 0")
	}
	return nil
}

// Package challenge builds the payment requirements object returned to an
// unpaid caller and echoed to the facilitator during verification.
package challenge

import (
	"strings"

	"github.com/audiomint/tunegate/chain"
	"github.com/audiomint/tunegate/pricing"
	"github.com/audiomint/tunegate/types"
)

const (
	// MaxTimeoutSeconds the server may take to fulfil a paid request.
	MaxTimeoutSeconds = 300

	// Description of the resource being purchased.
	Description = "Refine a music prompt and render a track. Pricing: $0.0333 per second (USDC via x402)."
)

// OutputSchema hints at the shape of the paid response body.
var OutputSchema = map[string]interface{}{
	"output": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"trackUrl":      map[string]interface{}{"type": "string"},
			"refinedPrompt": map[string]interface{}{"type": "string"},
		},
		"required": []string{"trackUrl"},
	},
}

// Builder composes chain configuration and pricing into the wire shape.
type Builder struct {
	chain *chain.Config
	payTo string
}

// NewBuilder binds a builder to the process-wide chain config and recipient.
func NewBuilder(chainCfg *chain.Config, payTo string) *Builder {
	return &Builder{chain: chainCfg, payTo: payTo}
}

// Build derives the payment requirement for a resource URL and duration.
// The amount always comes from the server's own view of the duration; the
// client never declares its own price.
func (b *Builder) Build(resourceURL string, seconds int) types.PaymentRequirements {
	quote := pricing.ForSeconds(seconds)

	return types.PaymentRequirements{
		Scheme:            types.SchemeExact,
		Network:           b.chain.Network.String(),
		MaxAmountRequired: quote.Atomic,
		Resource:          resourceURL,
		Description:       Description,
		MimeType:          "application/json",
		OutputSchema:      OutputSchema,
		PayTo:             strings.ToLower(b.payTo),
		MaxTimeoutSeconds: MaxTimeoutSeconds,
		Asset:             strings.ToLower(b.chain.AssetAddr.Hex()),
		Extra: map[string]interface{}{
			"name":    b.chain.AssetName,
			"version": b.chain.AssetVersion,
		},
	}
}

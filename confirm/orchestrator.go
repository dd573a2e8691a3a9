// Package confirm implements the payment confirmation state machine: it
// ties input validation, header decoding, recipient/amount/signature
// checks, facilitator verification, optional settlement and the paid
// work into one strictly ordered pipeline.
//
// Verification always completes before settlement, and settlement before
// work; reordering would expose free work or double payment. Any step
// may fail the request with a typed error; there is no retry inside a
// request, retries are the caller's responsibility and are idempotent
// through the authorization nonce.
package confirm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/audiomint/tunegate/chain"
	"github.com/audiomint/tunegate/challenge"
	"github.com/audiomint/tunegate/codec"
	"github.com/audiomint/tunegate/eip3009"
	"github.com/audiomint/tunegate/facilitator"
	"github.com/audiomint/tunegate/logger"
	"github.com/audiomint/tunegate/metrics"
	"github.com/audiomint/tunegate/pricing"
	"github.com/audiomint/tunegate/types"
)

// Verifier is the facilitator dependency.
type Verifier interface {
	Verify(ctx context.Context, payload *types.PaymentPayload, requirements types.PaymentRequirements, expected facilitator.Expected) types.VerificationResult
}

// Settler broadcasts an authorization on-chain.
type Settler interface {
	Settle(ctx context.Context, auth types.Authorization, sigHex string) (*types.SettlementReceipt, error)
}

// PaidWork is the collaborator invoked exactly once per verified payment.
type PaidWork interface {
	Run(ctx context.Context, input types.MusicInput) (*types.MusicOutput, string, error)
}

// Orchestrator runs the confirm pipeline. All fields are set once at
// construction and read-only afterwards; the orchestrator itself is safe
// for concurrent use.
type Orchestrator struct {
	chain    *chain.Config
	payTo    string
	builder  *challenge.Builder
	verifier Verifier
	settler  Settler // nil when local settlement is disabled or delegated
	work     PaidWork
	log      logger.Logger
	metrics  metrics.Recorder
	validate *validator.Validate
}

// Option mutates an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithSettler enables local settlement broadcasting.
func WithSettler(s Settler) Option {
	return func(o *Orchestrator) { o.settler = s }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// New wires an orchestrator to the process-wide chain config and
// recipient plus its collaborators.
func New(chainCfg *chain.Config, payTo string, verifier Verifier, work PaidWork, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chain:    chainCfg,
		payTo:    payTo,
		builder:  challenge.NewBuilder(chainCfg, payTo),
		verifier: verifier,
		work:     work,
		log:      logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Requirements exposes the challenge builder for the 402 path, so the
// challenge and the verification requirement are always derived the same
// way.
func (o *Orchestrator) Requirements(resourceURL string, seconds int) types.PaymentRequirements {
	return o.builder.Build(resourceURL, seconds)
}

// Confirm runs the full pipeline for one request. It returns either a
// success response or a typed payment error; it never panics on caller
// input.
func (o *Orchestrator) Confirm(ctx context.Context, req types.ConfirmRequest, resourceURL string) (*types.ConfirmResponse, *types.PaymentError) {
	resp, perr := o.run(ctx, req, resourceURL)
	if perr != nil {
		o.metrics.IncOutcome(perr.Code)
		return nil, perr
	}
	o.metrics.IncOutcome("ok")
	return resp, nil
}

func (o *Orchestrator) run(ctx context.Context, req types.ConfirmRequest, resourceURL string) (*types.ConfirmResponse, *types.PaymentError) {
	// 1. Input shape.
	if err := o.validate.Struct(&req.Input); err != nil {
		return nil, types.NewPaymentErrorDetail(types.ErrInvalidRequest,
			"invalid confirm payload", err.Error())
	}
	if req.PaymentHeader == "" {
		return nil, types.NewPaymentError(types.ErrInvalidRequest, "paymentHeader is required")
	}

	// 2. Decode the payment header; codec errors carry their own kinds.
	decoded, perr := codec.Decode(req.PaymentHeader)
	if perr != nil {
		return nil, perr
	}
	auth := decoded.Payload.Authorization

	// 3. Network.
	if decoded.Network != o.chain.Network.String() {
		return nil, types.NewPaymentError(types.ErrWrongNetwork,
			fmt.Sprintf("payment signed for %s, expected %s", decoded.Network, o.chain.Network))
	}

	// 4. Recipient, case-insensitive.
	if !strings.EqualFold(auth.To, o.payTo) {
		return nil, types.NewPaymentError(types.ErrWrongRecipient,
			"authorization recipient does not match payTo")
	}

	// 5. Amount: recomputed from the request's own duration, compared
	// exactly. Never trusted from the client's header.
	quote := pricing.ForSeconds(req.Input.Seconds)
	if quote.Atomic == "0" {
		return nil, types.NewPaymentError(types.ErrInvalidPrice,
			"unable to determine payment amount for the request")
	}
	authValue, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, types.NewPaymentError(types.ErrInvalidPaymentHeader,
			"authorization value is not a decimal integer")
	}
	if authValue.String() != quote.Atomic {
		return nil, types.NewPaymentError(types.ErrWrongAmount,
			fmt.Sprintf("authorization amount %s does not match required amount %s",
				authValue.String(), quote.Atomic))
	}

	// 6. Signature recovery under the chain's typed-data domain.
	domain := eip3009.Domain{
		Name:              o.chain.AssetName,
		Version:           o.chain.AssetVersion,
		ChainID:           big.NewInt(o.chain.ChainID),
		VerifyingContract: o.chain.AssetAddr,
	}
	sigResult := eip3009.Verify(auth, decoded.Payload.Signature, domain)
	if !sigResult.OK {
		o.log.Warn("signature verification failed", map[string]any{
			"claimedFrom": auth.From,
			"recovered":   sigResult.Recovered.Hex(),
			"reason":      sigResult.Diagnostic,
		})
		return nil, types.NewPaymentErrorDetail(types.ErrInvalidSignature,
			"authorization signature does not authenticate", sigResult.Diagnostic)
	}

	// 7. Facilitator verification, against server-derived requirements.
	requirement := o.builder.Build(resourceURL, req.Input.Seconds)
	expected := facilitator.Expected{
		Chain:        o.chain.Network.String(),
		Asset:        strings.ToLower(o.chain.AssetAddr.Hex()),
		PayTo:        strings.ToLower(o.payTo),
		AmountAtomic: quote.Atomic,
	}

	start := time.Now()
	verification := o.verifier.Verify(ctx, decoded, requirement, expected)
	o.metrics.ObserveLatency("facilitator_verify", time.Since(start))

	if !verification.OK {
		o.log.Warn("facilitator rejected authorization", map[string]any{
			"status":  verification.Status,
			"message": verification.Message,
			"from":    auth.From,
			"value":   auth.Value,
		})
		return nil, types.NewPaymentErrorDetail(types.ErrVerifyFailed,
			verification.Message, verification.Detail)
	}

	// 8. Optional local settlement. A failure here is fatal: the service
	// must not perform paid work without confirmed settlement when it
	// owns settlement.
	var settlementTxHash string
	if o.settler != nil {
		start = time.Now()
		receipt, err := o.settler.Settle(ctx, auth, decoded.Payload.Signature)
		o.metrics.ObserveLatency("settlement", time.Since(start))
		if err != nil {
			o.log.Error("settlement broadcast failed after successful verification", map[string]any{
				"error":    err.Error(),
				"from":     auth.From,
				"value":    auth.Value,
				"nonce":    auth.Nonce,
				"explorer": o.chain.ExplorerURL,
			})
			return nil, types.NewPaymentErrorDetail(types.ErrSettlementFailed,
				"failed to settle authorization on-chain", err.Error())
		}
		settlementTxHash = receipt.TxHash
	}

	// 9. Paid work, exactly once.
	requestID := uuid.NewString()
	start = time.Now()
	output, provider, err := o.work.Run(ctx, req.Input)
	o.metrics.ObserveLatency("generate", time.Since(start))
	if err != nil {
		// Money may already have moved; surface this distinctly so
		// operations can reconcile manually.
		o.log.Error("fulfillment failed after payment", map[string]any{
			"requestId":        requestID,
			"error":            err.Error(),
			"from":             auth.From,
			"value":            auth.Value,
			"settlementTxHash": settlementTxHash,
		})
		return nil, types.NewPaymentErrorDetail(types.ErrMusicError,
			"failed to generate track", err.Error())
	}

	o.log.Info("confirm succeeded", map[string]any{
		"requestId":        requestID,
		"billedSeconds":    quote.BilledSeconds,
		"amountAtomic":     quote.Atomic,
		"payer":            auth.From,
		"settlementTxHash": settlementTxHash,
	})

	// 10. Response.
	return &types.ConfirmResponse{
		OK:            true,
		TrackUrl:      output.TrackUrl,
		RefinedPrompt: output.RefinedPrompt,
		Price: types.Price{
			Cents:        quote.Cents,
			AmountAtomic: quote.Atomic,
		},
		RequestID:        requestID,
		Provider:         provider,
		SettlementTxHash: settlementTxHash,
	}, nil
}

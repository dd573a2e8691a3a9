// Package facilitator talks to the remote x402 verification service.
//
// The facilitator is a separate trust boundary: its answer is required
// but not blindly trusted. Beyond the explicit "verified" flag, any
// payment parameters it echoes back are cross-checked against what this
// service expected.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/audiomint/tunegate/logger"
	"github.com/audiomint/tunegate/types"
)

const defaultTimeout = 30 * time.Second

// Client verifies payment authorizations against a facilitator service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        logger.Logger
}

// Expected carries the server-derived payment parameters the facilitator
// response is cross-checked against.
type Expected struct {
	Chain        string
	Asset        string
	PayTo        string
	AmountAtomic string
}

// NewClient constructs a facilitator client. A nil httpClient gets a
// default with a bounded timeout.
func NewClient(baseURL string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        log,
	}
}

// BaseURL returns the configured facilitator endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type verifyRequest struct {
	X402Version         int                       `json:"x402Version"`
	PaymentPayload      types.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements types.PaymentRequirements `json:"paymentRequirements"`
}

// Verify posts the payment payload and requirements to the facilitator's
// /verify endpoint and interprets the response. It never returns an
// error: every failure mode is folded into the result so the caller
// branches on exactly one shape.
func (c *Client) Verify(
	ctx context.Context,
	payload *types.PaymentPayload,
	requirements types.PaymentRequirements,
	expected Expected,
) types.VerificationResult {
	endpoint, err := url.JoinPath(c.baseURL, "verify")
	if err != nil {
		return failure(nil, fmt.Sprintf("invalid facilitator URL: %v", err), "")
	}

	// The upstream service is case-sensitive about hex fields in
	// practice; normalize everything outbound. The top-level version
	// echoes whatever the client's header declared.
	body := verifyRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      normalizePayload(payload),
		PaymentRequirements: normalizeRequirements(requirements),
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return failure(nil, fmt.Sprintf("failed to encode verify request: %v", err), "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return failure(nil, fmt.Sprintf("failed to build verify request: %v", err), "")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tunegate/1.0 (+x402-verify)")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("facilitator unreachable", map[string]any{"error": err.Error()})
		return failure(nil, "unable to reach facilitator verification service", err.Error())
	}
	defer res.Body.Close()

	text, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return failure(&res.StatusCode, "failed to read facilitator response", err.Error())
	}

	var parsed map[string]interface{}
	if len(text) > 0 {
		if err := json.Unmarshal(text, &parsed); err != nil {
			c.log.Warn("facilitator returned non-JSON body", map[string]any{
				"status": res.StatusCode,
				"body":   truncate(string(text), 200),
			})
			return failure(&res.StatusCode, "failed to parse facilitator response", string(text))
		}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := errorMessage(parsed)
		if msg == "" {
			msg = fmt.Sprintf("facilitator returned %d", res.StatusCode)
		}
		return failure(&res.StatusCode, msg, string(text))
	}

	// Absence of the verified flag is a failure, not success-by-default.
	if verified, _ := parsed["verified"].(bool); !verified {
		msg := errorMessage(parsed)
		if msg == "" {
			msg = "facilitator did not verify authorization"
		}
		return failure(&res.StatusCode, msg, string(text))
	}

	if msg := crossCheck(parsed, expected); msg != "" {
		c.log.Warn("facilitator echo mismatch", map[string]any{
			"status": res.StatusCode,
			"reason": msg,
		})
		return failure(&res.StatusCode, msg, string(text))
	}

	amount := expected.AmountAtomic
	if echoed, ok := parsed["amountAtomic"].(string); ok && echoed != "" {
		amount = echoed
	}

	return types.VerificationResult{
		OK:               true,
		AmountPaidAtomic: amount,
		Raw:              parsed,
	}
}

// crossCheck compares echoed payment parameters against expectations.
// A facilitator that says "verified" about the wrong recipient, asset or
// chain is still a failure.
func crossCheck(parsed map[string]interface{}, expected Expected) string {
	if to, ok := parsed["to"].(string); ok && to != "" {
		if !strings.EqualFold(to, expected.PayTo) {
			return fmt.Sprintf("facilitator verified payment to %s, expected %s", to, expected.PayTo)
		}
	}
	if asset, ok := parsed["asset"].(string); ok && asset != "" {
		if !strings.EqualFold(asset, expected.Asset) {
			return fmt.Sprintf("facilitator verified asset %s, expected %s", asset, expected.Asset)
		}
	}
	if chain, ok := parsed["chain"].(string); ok && chain != "" {
		if !strings.EqualFold(chain, expected.Chain) {
			return fmt.Sprintf("facilitator verified chain %s, expected %s", chain, expected.Chain)
		}
	}
	return ""
}

func normalizePayload(p *types.PaymentPayload) types.PaymentPayload {
	out := *p
	out.Payload.Signature = strings.ToLower(out.Payload.Signature)
	auth := &out.Payload.Authorization
	auth.From = strings.ToLower(auth.From)
	auth.To = strings.ToLower(auth.To)
	auth.Nonce = strings.ToLower(auth.Nonce)
	auth.Value = normalizeDecimal(auth.Value)
	auth.ValidAfter = normalizeDecimal(auth.ValidAfter)
	auth.ValidBefore = normalizeDecimal(auth.ValidBefore)
	return out
}

func normalizeRequirements(r types.PaymentRequirements) types.PaymentRequirements {
	r.PayTo = strings.ToLower(r.PayTo)
	r.Asset = strings.ToLower(r.Asset)
	r.MaxAmountRequired = normalizeDecimal(r.MaxAmountRequired)
	return r
}

// normalizeDecimal strips leading zeros from a decimal string.
func normalizeDecimal(s string) string {
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n.String()
	}
	return s
}

func errorMessage(parsed map[string]interface{}) string {
	if parsed == nil {
		return ""
	}
	if nested, ok := parsed["error"].(map[string]interface{}); ok {
		if msg, ok := nested["message"].(string); ok {
			return msg
		}
	}
	if msg, ok := parsed["message"].(string); ok {
		return msg
	}
	return ""
}

func failure(status *int, message, detail string) types.VerificationResult {
	return types.VerificationResult{
		Status:  status,
		Message: message,
		Detail:  detail,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Package codec decodes the client payment header into a structured
// authorization. It is purely syntactic: no cryptographic or business
// validation happens here, so decoding the same header twice always
// yields identical values.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/audiomint/tunegate/types"
)

var nonceRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Decode parses a base64 JSON payment header. Failures are tagged:
// INVALID_PAYMENT_HEADER for anything undecodable or structurally broken,
// UNSUPPORTED_SCHEME for a scheme other than "exact", MISSING_SIGNATURE
// when the signature field is absent or empty.
func Decode(header string) (*types.PaymentPayload, *types.PaymentError) {
	if header == "" {
		return nil, types.NewPaymentError(types.ErrInvalidPaymentHeader, "payment header is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, types.NewPaymentErrorDetail(types.ErrInvalidPaymentHeader,
			"payment header is not valid base64", err.Error())
	}

	var payload types.PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, types.NewPaymentErrorDetail(types.ErrInvalidPaymentHeader,
			"payment header is not valid JSON", err.Error())
	}

	if payload.Scheme != types.SchemeExact {
		return nil, types.NewPaymentError(types.ErrUnsupportedScheme,
			fmt.Sprintf("unsupported scheme: %s", payload.Scheme))
	}

	if payload.Payload.Signature == "" {
		return nil, types.NewPaymentError(types.ErrMissingSignature,
			"payment header missing signature")
	}

	if err := validateAuthorization(&payload.Payload.Authorization); err != nil {
		return nil, types.NewPaymentErrorDetail(types.ErrInvalidPaymentHeader,
			"malformed authorization", err.Error())
	}

	return &payload, nil
}

func validateAuthorization(auth *types.Authorization) error {
	if !common.IsHexAddress(auth.From) {
		return fmt.Errorf("from %q is not an address", auth.From)
	}
	if !common.IsHexAddress(auth.To) {
		return fmt.Errorf("to %q is not an address", auth.To)
	}
	for _, f := range []struct{ name, value string }{
		{"value", auth.Value},
		{"validAfter", auth.ValidAfter},
		{"validBefore", auth.ValidBefore},
	} {
		if _, ok := new(big.Int).SetString(f.value, 10); !ok {
			return fmt.Errorf("%s %q is not a decimal integer", f.name, f.value)
		}
	}
	if !nonceRe.MatchString(auth.Nonce) {
		return fmt.Errorf("nonce %q is not 32-byte hex", auth.Nonce)
	}
	return nil
}

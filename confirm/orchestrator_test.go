package confirm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiomint/tunegate/chain"
	"github.com/audiomint/tunegate/eip3009"
	"github.com/audiomint/tunegate/facilitator"
	"github.com/audiomint/tunegate/pricing"
	"github.com/audiomint/tunegate/types"
)

const (
	testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testPayTo  = "0xb308ed39d67D0d4BAe5BC2FAEF60c66BBb6AE429"
	testURL    = "https://pay.example.com/entrypoints/music/invoke"
)

type fakeVerifier struct {
	result types.VerificationResult
	calls  int
	got    facilitator.Expected
}

func (f *fakeVerifier) Verify(_ context.Context, _ *types.PaymentPayload, _ types.PaymentRequirements, expected facilitator.Expected) types.VerificationResult {
	f.calls++
	f.got = expected
	return f.result
}

type fakeSettler struct {
	receipt *types.SettlementReceipt
	err     error
	calls   int
}

func (f *fakeSettler) Settle(context.Context, types.Authorization, string) (*types.SettlementReceipt, error) {
	f.calls++
	return f.receipt, f.err
}

type fakeWork struct {
	output *types.MusicOutput
	err    error
	calls  int
}

func (f *fakeWork) Run(context.Context, types.MusicInput) (*types.MusicOutput, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.output, "placeholder", nil
}

func testChain(t *testing.T) *chain.Config {
	t.Helper()
	cfg, err := chain.Resolve(types.NetworkBaseSepolia, chain.Overrides{})
	require.NoError(t, err)
	return cfg
}

// signedHeader produces a base64 payment header carrying a genuine
// signature over the chain's typed-data domain.
func signedHeader(t *testing.T, cfg *chain.Config, seconds int, mutate func(*types.PaymentPayload)) string {
	t.Helper()

	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey).Hex()

	auth := types.Authorization{
		From:        from,
		To:          testPayTo,
		Value:       pricing.ForSeconds(seconds).Atomic,
		ValidAfter:  "0",
		ValidBefore: "99999999999",
		Nonce:       "0x1111111111111111111111111111111111111111111111111111111111111111",
	}
	domain := eip3009.Domain{
		Name:              cfg.AssetName,
		Version:           cfg.AssetVersion,
		ChainID:           big.NewInt(cfg.ChainID),
		VerifyingContract: cfg.AssetAddr,
	}
	sig, err := eip3009.Sign(auth, domain, key)
	require.NoError(t, err)

	payload := &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeExact,
		Network:     cfg.Network.String(),
		Payload: types.ExactEvmPayload{
			Signature:     sig,
			Authorization: auth,
		},
	}
	if mutate != nil {
		mutate(payload)
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func okVerification() types.VerificationResult {
	return types.VerificationResult{OK: true}
}

func TestConfirmHappyPath(t *testing.T) {
	cfg := testChain(t)
	verifier := &fakeVerifier{result: okVerification()}
	work := &fakeWork{output: &types.MusicOutput{
		TrackUrl:      "https://cdn.example.com/track.mp3",
		RefinedPrompt: "refined",
	}}
	o := New(cfg, testPayTo, verifier, work)

	req := types.ConfirmRequest{
		Input:         types.MusicInput{Prompt: "lofi beats", Seconds: 45},
		PaymentHeader: signedHeader(t, cfg, 45, nil),
	}
	resp, perr := o.Confirm(context.Background(), req, testURL)
	require.Nil(t, perr)

	assert.True(t, resp.OK)
	assert.Equal(t, "https://cdn.example.com/track.mp3", resp.TrackUrl)
	assert.Equal(t, "1498500", resp.Price.AmountAtomic)
	assert.InDelta(t, 149.85, resp.Price.Cents, 0.0001)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "placeholder", resp.Provider)
	assert.Empty(t, resp.SettlementTxHash)

	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, 1, work.calls)
	assert.Equal(t, "1498500", verifier.got.AmountAtomic)
	assert.Equal(t, "base-sepolia", verifier.got.Chain)
}

func TestConfirmRecipientCaseInsensitive(t *testing.T) {
	cfg := testChain(t)
	verifier := &fakeVerifier{result: okVerification()}
	work := &fakeWork{output: &types.MusicOutput{TrackUrl: "x"}}

	req := types.ConfirmRequest{
		Input:         types.MusicInput{Prompt: "p", Seconds: 10},
		PaymentHeader: signedHeader(t, cfg, 10, nil),
	}

	// The header carries the checksummed recipient; the orchestrator is
	// configured with the lowercase form of the same address.
	lower := New(cfg, "0xb308ed39d67d0d4bae5bc2faef60c66bbb6ae429", verifier, work)
	_, perr := lower.Confirm(context.Background(), req, testURL)
	require.Nil(t, perr)
}

func TestConfirmRejectionsInOrder(t *testing.T) {
	cfg := testChain(t)

	cases := []struct {
		name     string
		input    types.MusicInput
		header   func(t *testing.T) string
		wantCode string
	}{
		{
			name:     "empty prompt",
			input:    types.MusicInput{Prompt: "", Seconds: 30},
			header:   func(t *testing.T) string { return signedHeader(t, cfg, 30, nil) },
			wantCode: types.ErrInvalidRequest,
		},
		{
			name:     "seconds below minimum",
			input:    types.MusicInput{Prompt: "p", Seconds: 2},
			header:   func(t *testing.T) string { return signedHeader(t, cfg, 5, nil) },
			wantCode: types.ErrInvalidRequest,
		},
		{
			name:     "seconds above maximum",
			input:    types.MusicInput{Prompt: "p", Seconds: 500},
			header:   func(t *testing.T) string { return signedHeader(t, cfg, 120, nil) },
			wantCode: types.ErrInvalidRequest,
		},
		{
			name:     "missing header",
			input:    types.MusicInput{Prompt: "p", Seconds: 30},
			header:   func(*testing.T) string { return "" },
			wantCode: types.ErrInvalidRequest,
		},
		{
			name:  "garbage header",
			input: types.MusicInput{Prompt: "p", Seconds: 30},
			header: func(*testing.T) string {
				return "not base64!!!"
			},
			wantCode: types.ErrInvalidPaymentHeader,
		},
		{
			name:  "wrong network",
			input: types.MusicInput{Prompt: "p", Seconds: 30},
			header: func(t *testing.T) string {
				return signedHeader(t, cfg, 30, func(p *types.PaymentPayload) {
					p.Network = "base"
				})
			},
			wantCode: types.ErrWrongNetwork,
		},
		{
			name:  "wrong recipient",
			input: types.MusicInput{Prompt: "p", Seconds: 30},
			header: func(t *testing.T) string {
				return signedHeader(t, cfg, 30, func(p *types.PaymentPayload) {
					p.Payload.Authorization.To = "0x1111111111111111111111111111111111111111"
				})
			},
			wantCode: types.ErrWrongRecipient,
		},
		{
			name:  "amount mismatch",
			input: types.MusicInput{Prompt: "p", Seconds: 60},
			header: func(t *testing.T) string {
				// Signed for 30 seconds, requested 60.
				return signedHeader(t, cfg, 30, nil)
			},
			wantCode: types.ErrWrongAmount,
		},
		{
			name:  "tampered value after signing",
			input: types.MusicInput{Prompt: "p", Seconds: 30},
			header: func(t *testing.T) string {
				return signedHeader(t, cfg, 45, func(p *types.PaymentPayload) {
					// Amount matches a 30s request but the signature
					// covered the 45s value.
					p.Payload.Authorization.Value = pricing.ForSeconds(30).Atomic
				})
			},
			wantCode: types.ErrInvalidSignature,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := &fakeVerifier{result: okVerification()}
			work := &fakeWork{output: &types.MusicOutput{TrackUrl: "x"}}
			o := New(cfg, testPayTo, verifier, work)

			req := types.ConfirmRequest{
				Input:         tc.input,
				PaymentHeader: tc.header(t),
			}
			resp, perr := o.Confirm(context.Background(), req, testURL)
			require.NotNil(t, perr)
			assert.Nil(t, resp)
			assert.Equal(t, tc.wantCode, perr.Code)
			assert.Zero(t, work.calls, "paid work must not run after a rejection")
		})
	}
}

func TestConfirmFacilitatorRejection(t *testing.T) {
	cfg := testChain(t)
	verifier := &fakeVerifier{result: types.VerificationResult{
		OK:      false,
		Message: "insufficient balance",
	}}
	work := &fakeWork{output: &types.MusicOutput{TrackUrl: "x"}}
	o := New(cfg, testPayTo, verifier, work)

	req := types.ConfirmRequest{
		Input:         types.MusicInput{Prompt: "p", Seconds: 30},
		PaymentHeader: signedHeader(t, cfg, 30, nil),
	}
	_, perr := o.Confirm(context.Background(), req, testURL)
	require.NotNil(t, perr)
	assert.Equal(t, types.ErrVerifyFailed, perr.Code)
	assert.Equal(t, "insufficient balance", perr.Message)
	assert.Zero(t, work.calls)
}

func TestConfirmSettlementPaths(t *testing.T) {
	cfg := testChain(t)

	t.Run("settler failure blocks work", func(t *testing.T) {
		verifier := &fakeVerifier{result: okVerification()}
		work := &fakeWork{output: &types.MusicOutput{TrackUrl: "x"}}
		settler := &fakeSettler{err: assert.AnError}
		o := New(cfg, testPayTo, verifier, work, WithSettler(settler))

		req := types.ConfirmRequest{
			Input:         types.MusicInput{Prompt: "p", Seconds: 30},
			PaymentHeader: signedHeader(t, cfg, 30, nil),
		}
		_, perr := o.Confirm(context.Background(), req, testURL)
		require.NotNil(t, perr)
		assert.Equal(t, types.ErrSettlementFailed, perr.Code)
		assert.Equal(t, 1, settler.calls)
		assert.Zero(t, work.calls)
	})

	t.Run("settler success surfaces tx hash", func(t *testing.T) {
		verifier := &fakeVerifier{result: okVerification()}
		work := &fakeWork{output: &types.MusicOutput{TrackUrl: "x"}}
		settler := &fakeSettler{receipt: &types.SettlementReceipt{TxHash: "0xabc"}}
		o := New(cfg, testPayTo, verifier, work, WithSettler(settler))

		req := types.ConfirmRequest{
			Input:         types.MusicInput{Prompt: "p", Seconds: 30},
			PaymentHeader: signedHeader(t, cfg, 30, nil),
		}
		resp, perr := o.Confirm(context.Background(), req, testURL)
		require.Nil(t, perr)
		assert.Equal(t, "0xabc", resp.SettlementTxHash)
		assert.Equal(t, 1, work.calls)
	})

	t.Run("no settler means no tx hash", func(t *testing.T) {
		verifier := &fakeVerifier{result: okVerification()}
		work := &fakeWork{output: &types.MusicOutput{TrackUrl: "x"}}
		o := New(cfg, testPayTo, verifier, work)

		req := types.ConfirmRequest{
			Input:         types.MusicInput{Prompt: "p", Seconds: 30},
			PaymentHeader: signedHeader(t, cfg, 30, nil),
		}
		resp, perr := o.Confirm(context.Background(), req, testURL)
		require.Nil(t, perr)
		assert.Empty(t, resp.SettlementTxHash)
	})
}

func TestConfirmWorkFailure(t *testing.T) {
	cfg := testChain(t)
	verifier := &fakeVerifier{result: okVerification()}
	work := &fakeWork{err: assert.AnError}
	o := New(cfg, testPayTo, verifier, work)

	req := types.ConfirmRequest{
		Input:         types.MusicInput{Prompt: "p", Seconds: 30},
		PaymentHeader: signedHeader(t, cfg, 30, nil),
	}
	_, perr := o.Confirm(context.Background(), req, testURL)
	require.NotNil(t, perr)
	assert.Equal(t, types.ErrMusicError, perr.Code)
	assert.Equal(t, 1, work.calls, "paid work runs exactly once even on failure")
}

package challenge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiomint/tunegate/chain"
	"github.com/audiomint/tunegate/pricing"
	"github.com/audiomint/tunegate/types"
)

const testPayTo = "0xb308ed39d67D0d4BAe5BC2FAEF60c66BBb6AE429"

func testBuilder(t *testing.T) *Builder {
	cfg, err := chain.Resolve(types.NetworkBaseSepolia, chain.Overrides{})
	require.NoError(t, err)
	return NewBuilder(cfg, testPayTo)
}

func TestBuildShape(t *testing.T) {
	b := testBuilder(t)

	req := b.Build("https://svc.example/entrypoints/music/invoke", 45)

	assert.Equal(t, "exact", req.Scheme)
	assert.Equal(t, "base-sepolia", req.Network)
	assert.Equal(t, "1498500", req.MaxAmountRequired)
	assert.Equal(t, "https://svc.example/entrypoints/music/invoke", req.Resource)
	assert.Equal(t, "application/json", req.MimeType)
	assert.Equal(t, "0xb308ed39d67d0d4bae5bc2faef60c66bbb6ae429", req.PayTo)
	assert.Equal(t, MaxTimeoutSeconds, req.MaxTimeoutSeconds)
	assert.Equal(t, "0x036cbd53842c5426634e7929541ec2318f3dcf7e", req.Asset)
	assert.Equal(t, map[string]interface{}{"name": "USDC", "version": "2"}, req.Extra)
	require.NoError(t, req.Validate())
}

func TestBuildMatchesQuoteForAllValidDurations(t *testing.T) {
	b := testBuilder(t)

	for s := 5; s <= 120; s++ {
		req := b.Build("https://svc.example/r", s)
		assert.Equal(t, pricing.ForSeconds(s).Atomic, req.MaxAmountRequired, fmt.Sprintf("seconds=%d", s))
	}
}

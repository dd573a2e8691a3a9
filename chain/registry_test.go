package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiomint/tunegate/types"
)

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve(types.NetworkBaseSepolia, Overrides{})
	require.NoError(t, err)

	assert.Equal(t, int64(84532), cfg.ChainID)
	assert.Equal(t, "Base Sepolia", cfg.Label)
	assert.Equal(t, "https://sepolia.base.org", cfg.RPCURL)
	assert.Equal(t, common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"), cfg.AssetAddr)
	assert.Equal(t, "USDC", cfg.AssetName)
	assert.Equal(t, "2", cfg.AssetVersion)
}

func TestResolveMainnet(t *testing.T) {
	cfg, err := Resolve(types.NetworkBase, Overrides{})
	require.NoError(t, err)

	assert.Equal(t, int64(8453), cfg.ChainID)
	assert.Equal(t, common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), cfg.AssetAddr)
}

func TestResolveOverrides(t *testing.T) {
	cfg, err := Resolve(types.NetworkBaseSepolia, Overrides{
		RPCURL:    "https://rpc.example.org",
		AssetAddr: "0x00000000000000000000000000000000000000aa",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.org", cfg.RPCURL)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa"), cfg.AssetAddr)
	// Chain id pairing is not overridable.
	assert.Equal(t, int64(84532), cfg.ChainID)
}

func TestResolveRejectsBadAssetOverride(t *testing.T) {
	_, err := Resolve(types.NetworkBaseSepolia, Overrides{AssetAddr: "not-an-address"})
	assert.Error(t, err)
}

func TestResolveUnknownNetwork(t *testing.T) {
	_, err := Resolve(types.Network("polygon"), Overrides{})
	assert.Error(t, err)
}

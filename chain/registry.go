// Package chain holds the static registry of supported settlement chains.
package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/audiomint/tunegate/types"
)

// Config describes one settlement chain. Constructed once at startup and
// read-only afterwards.
type Config struct {
	Network     types.Network
	ChainID     int64
	Label       string
	RPCURL      string
	ExplorerURL string
	AssetAddr   common.Address

	// Typed-data domain metadata for the asset contract.
	AssetName    string
	AssetVersion string
}

// Overrides replace the RPC URL and asset address of a registry entry.
// The chain id and network pairing are immutable.
type Overrides struct {
	RPCURL    string
	AssetAddr string
}

type entry struct {
	chainID     int64
	label       string
	rpcURL      string
	explorerURL string
	assetAddr   string
}

// USDC deployments per chain; the asset domain is USDC version 2 on both.
var registry = map[types.Network]entry{
	types.NetworkBase: {
		chainID:     8453,
		label:       "Base",
		rpcURL:      "https://mainnet.base.org",
		explorerURL: "https://basescan.org",
		assetAddr:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	},
	types.NetworkBaseSepolia: {
		chainID:     84532,
		label:       "Base Sepolia",
		rpcURL:      "https://sepolia.base.org",
		explorerURL: "https://sepolia.basescan.org",
		assetAddr:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	},
}

// Resolve returns the chain configuration for a network, applying any
// overrides. It fails only for networks outside the closed set.
func Resolve(network types.Network, ov Overrides) (*Config, error) {
	e, ok := registry[network]
	if !ok {
		return nil, fmt.Errorf("no chain configuration for network %q", network)
	}

	cfg := &Config{
		Network:      network,
		ChainID:      e.chainID,
		Label:        e.label,
		RPCURL:       e.rpcURL,
		ExplorerURL:  e.explorerURL,
		AssetAddr:    common.HexToAddress(e.assetAddr),
		AssetName:    "USDC",
		AssetVersion: "2",
	}

	if ov.RPCURL != "" {
		cfg.RPCURL = ov.RPCURL
	}
	if ov.AssetAddr != "" {
		if !common.IsHexAddress(ov.AssetAddr) {
			return nil, fmt.Errorf("asset address override %q is not a valid address", ov.AssetAddr)
		}
		cfg.AssetAddr = common.HexToAddress(ov.AssetAddr)
	}

	return cfg, nil
}

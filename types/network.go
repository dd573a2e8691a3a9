package types

import "fmt"

// Network identifies a supported settlement chain.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
)

// ParseNetwork rejects anything outside the closed network set.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case NetworkBase, NetworkBaseSepolia:
		return Network(s), nil
	default:
		return "", fmt.Errorf("unsupported network: %q", s)
	}
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia
}

func (n Network) String() string {
	return string(n)
}

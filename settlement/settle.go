// Package settlement broadcasts EIP-3009 authorizations to the asset
// contract through a funded relayer key.
//
// Local settlement is the exception, not the rule: it runs only when
// explicitly enabled and the configured facilitator does not already
// settle on the service's behalf. Broadcasting on top of a managed
// facilitator would double-spend the authorization's nonce.
package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/audiomint/tunegate/eip3009"
	"github.com/audiomint/tunegate/logger"
	"github.com/audiomint/tunegate/types"
)

const transferWithAuthABI = `
[
  {
    "name": "transferWithAuthorization",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "from", "type": "address" },
      { "name": "to", "type": "address" },
      { "name": "value", "type": "uint256" },
      { "name": "validAfter", "type": "uint256" },
      { "name": "validBefore", "type": "uint256" },
      { "name": "nonce", "type": "bytes32" },
      { "name": "v", "type": "uint8" },
      { "name": "r", "type": "bytes32" },
      { "name": "s", "type": "bytes32" }
    ],
    "outputs": []
  }
]
`

const defaultTimeout = 60 * time.Second

// managedFacilitatorHosts settle authorizations themselves; local
// broadcasting next to them is skipped.
var managedFacilitatorHosts = []string{
	"daydreams.systems",
	"x402.org",
}

// ShouldSettleLocally decides the settlement-skip policy: broadcast only
// when settlement is enabled and the facilitator is not managed.
func ShouldSettleLocally(enabled bool, facilitatorURL string) bool {
	return enabled && !IsManagedFacilitator(facilitatorURL)
}

// IsManagedFacilitator reports whether the facilitator URL points at a
// service known to perform settlement itself.
func IsManagedFacilitator(facilitatorURL string) bool {
	u, err := url.Parse(facilitatorURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, managed := range managedFacilitatorHosts {
		if host == managed || strings.HasSuffix(host, "."+managed) {
			return true
		}
	}
	return false
}

// Broadcaster submits transferWithAuthorization calls and waits for one
// confirmation.
type Broadcaster struct {
	rpcURL    string
	chainID   *big.Int
	assetAddr common.Address
	key       *ecdsa.PrivateKey
	timeout   time.Duration
	log       logger.Logger
}

// NewBroadcaster builds a broadcaster from a hex relayer key. The key is
// validated here so a malformed key fails startup, not the first request.
func NewBroadcaster(rpcURL string, chainID int64, assetAddr common.Address, privateKeyHex string, log logger.Logger) (*Broadcaster, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Broadcaster{
		rpcURL:    rpcURL,
		chainID:   big.NewInt(chainID),
		assetAddr: assetAddr,
		key:       key,
		timeout:   defaultTimeout,
		log:       log,
	}, nil
}

// RelayerAddress returns the address paying gas for settlements.
func (b *Broadcaster) RelayerAddress() common.Address {
	return crypto.PubkeyToAddress(b.key.PublicKey)
}

// Settle submits the authorization to the asset contract and blocks until
// the transaction is mined once, returning its hash.
func (b *Broadcaster) Settle(ctx context.Context, auth types.Authorization, sigHex string) (*types.SettlementReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	v, r, s, err := eip3009.SplitSignature(sigHex)
	if err != nil {
		return nil, fmt.Errorf("split signature: %w", err)
	}

	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid authorization value %q", auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validAfter %q", auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validBefore %q", auth.ValidBefore)
	}
	nonce, err := eip3009.HexToBytes32(auth.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}

	client, err := ethclient.DialContext(ctx, b.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	parsed, err := abi.JSON(strings.NewReader(transferWithAuthABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(b.key, b.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(b.assetAddr, parsed, client, client, client)
	tx, err := contract.Transact(opts, "transferWithAuthorization",
		common.HexToAddress(auth.From),
		common.HexToAddress(auth.To),
		value,
		validAfter,
		validBefore,
		nonce,
		v,
		r,
		s,
	)
	if err != nil {
		return nil, fmt.Errorf("broadcast transferWithAuthorization: %w", err)
	}

	b.log.Info("settlement broadcast", map[string]any{
		"txHash":  tx.Hash().Hex(),
		"from":    auth.From,
		"to":      auth.To,
		"value":   auth.Value,
		"relayer": b.RelayerAddress().Hex(),
	})

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for confirmation: %w", err)
	}
	if receipt.Status == 0 {
		return nil, fmt.Errorf("settlement transaction %s reverted", tx.Hash().Hex())
	}

	return &types.SettlementReceipt{TxHash: tx.Hash().Hex()}, nil
}

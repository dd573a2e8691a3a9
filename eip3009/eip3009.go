// Package eip3009 implements the typed-data hashing and signature
// recovery for EIP-3009 TransferWithAuthorization messages, plus the
// signature splitting needed to submit one on-chain.
package eip3009

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/audiomint/tunegate/types"
)

var (
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	transferAuthTypeHash = crypto.Keccak256Hash([]byte(
		"TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))
)

// Domain is the typed-data signing context scoping a signature to one
// asset contract on one chain.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DomainSeparator hashes the domain per EIP-712.
func (d Domain) Separator() common.Hash {
	return keccakConcat(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		padLeft32(d.ChainID),
		addressTo32(d.VerifyingContract),
	)
}

// Digest computes the final EIP-712 digest for an authorization under a
// domain. Fails on non-decimal numeric fields or a malformed nonce.
func Digest(auth types.Authorization, domain Domain) ([]byte, error) {
	value, err := decimalBig("value", auth.Value)
	if err != nil {
		return nil, err
	}
	validAfter, err := decimalBig("validAfter", auth.ValidAfter)
	if err != nil {
		return nil, err
	}
	validBefore, err := decimalBig("validBefore", auth.ValidBefore)
	if err != nil {
		return nil, err
	}
	nonce, err := HexToBytes32(auth.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}

	structHash := keccakConcat(
		transferAuthTypeHash.Bytes(),
		addressTo32(common.HexToAddress(auth.From)),
		addressTo32(common.HexToAddress(auth.To)),
		padLeft32(value),
		padLeft32(validAfter),
		padLeft32(validBefore),
		nonce[:],
	)

	sep := domain.Separator()
	return crypto.Keccak256([]byte("\x19\x01"), sep.Bytes(), structHash.Bytes()), nil
}

// Result reports a signature verification outcome. A mismatch or a
// malformed signature is an ordinary Result, never a crash.
type Result struct {
	OK        bool
	Recovered common.Address
	// Diagnostic explains a failed verification for logging.
	Diagnostic string
}

// Verify recovers the signer of an authorization and compares it,
// case-insensitively, to the claimed payer.
func Verify(auth types.Authorization, sigHex string, domain Domain) Result {
	recovered, err := RecoverSigner(auth, sigHex, domain)
	if err != nil {
		return Result{Diagnostic: err.Error()}
	}

	if !strings.EqualFold(recovered.Hex(), auth.From) {
		return Result{
			Recovered: recovered,
			Diagnostic: fmt.Sprintf("recovered signer %s does not match claimed payer %s",
				recovered.Hex(), auth.From),
		}
	}

	return Result{OK: true, Recovered: recovered}
}

// RecoverSigner recovers the address that signed the authorization's
// typed-data digest. The recovery id is accepted in either the 0/1 or
// 27/28 convention.
func RecoverSigner(auth types.Authorization, sigHex string, domain Domain) (common.Address, error) {
	sig, err := decodeSignature(sigHex)
	if err != nil {
		return common.Address{}, err
	}

	digest, err := Digest(auth, domain)
	if err != nil {
		return common.Address{}, err
	}

	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a 65-byte hex signature over an authorization with the
// recovery id in the 27/28 convention wallets emit. Used by tests and
// tooling; the service itself never signs authorizations.
func Sign(auth types.Authorization, domain Domain, key *ecdsa.PrivateKey) (string, error) {
	digest, err := Digest(auth, domain)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return hexutil.Encode(sig), nil
}

// SplitSignature splits a 65-byte hex signature into the (v, r, s)
// components the asset contract expects, with v normalized to 27/28.
func SplitSignature(sigHex string) (v uint8, r [32]byte, s [32]byte, err error) {
	sig, err := decodeSignature(sigHex)
	if err != nil {
		return 0, r, s, err
	}

	copy(r[:], sig[0:32])
	copy(s[:], sig[32:64])
	v = sig[64]
	if v < 27 {
		v += 27
	}
	return v, r, s, nil
}

// HexToBytes32 parses 0x-prefixed hex into exactly 32 bytes.
func HexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func decodeSignature(sigHex string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("signature is not valid hex: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	out := make([]byte, 65)
	copy(out, sig)
	return out, nil
}

func decimalBig(name, value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q is not a decimal integer", name, value)
	}
	return n, nil
}

func keccakConcat(parts ...[]byte) common.Hash {
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	return crypto.Keccak256Hash(joined)
}

func padLeft32(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func addressTo32(a common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], a.Bytes())
	return out
}

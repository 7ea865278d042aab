// Package binding derives the 32-byte binding tags and shared blindings that
// tie a proof to its on-chain context. Every value here is the Keccak-256 of
// Solidity tightly packed fields, so contracts and browser clients derive the
// same bytes.
package binding

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

const (
	VersionVC   = "zkp-bind-v1"
	VersionVCV2 = "zkp-bind-v2"
	VersionTx   = "tx-hash-bind-v1"

	MaxStage    = 2
	AddressSize = 20
)

// Address is a 20-byte account or contract address.
type Address [AddressSize]byte

var ErrInvalidContext = errors.New("invalid binding context")

// Number is an integer carried as a JSON string or a bare JSON number.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = Number(num)
	return nil
}

// VCContext identifies a credential stage of one product escrow. A non-empty
// PreviousVCCid selects the v2 layout.
type VCContext struct {
	ChainID       Number `json:"chainId"`
	Escrow        string `json:"escrowAddr"`
	ProductID     Number `json:"productId"`
	Stage         uint8  `json:"stage"`
	SchemaVersion string `json:"schemaVersion"`
	PreviousVCCid string `json:"previousVCCid,omitempty"`
}

// TxContext links the purchase and delivery transaction commitments of one
// buyer.
type TxContext struct {
	ChainID   Number `json:"chainId"`
	Escrow    string `json:"escrowAddr"`
	ProductID Number `json:"productId"`
	Buyer     string `json:"buyerAddress"`
}

func invalidf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidContext)
}

// ParseAddress accepts a 20-byte hex address with or without 0x. Checksums
// are not enforced.
func ParseAddress(field, s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != 2*AddressSize {
		return a, invalidf("%s: not a 20-byte hex address", field)
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, invalidf("%s: not a 20-byte hex address", field)
	}
	return a, nil
}

// ParseUint256 accepts a decimal or 0x-prefixed hex integer in [0, 2^256).
func ParseUint256(field, s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidf("%s: required", field)
	}
	var (
		n   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" && len(s) > 2 {
			digits = "0"
		}
		n, err = uint256.FromHex("0x" + digits)
	} else {
		n, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, invalidf("%s: not an unsigned 256-bit integer: %v", field, err)
	}
	return n, nil
}

// packer builds Solidity abi.encodePacked output.
type packer struct {
	buf []byte
}

func (p *packer) str(s string) *packer {
	p.buf = append(p.buf, s...)
	return p
}

func (p *packer) uint256(n *uint256.Int) *packer {
	b := n.Bytes32()
	p.buf = append(p.buf, b[:]...)
	return p
}

func (p *packer) address(a Address) *packer {
	p.buf = append(p.buf, a[:]...)
	return p
}

func (p *packer) uint8(v uint8) *packer {
	p.buf = append(p.buf, v)
	return p
}

func (p *packer) sum() [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(p.buf)
	h.Sum(out[:0])
	return out
}

// VCTag computes the credential binding tag.
func VCTag(ctx VCContext) ([32]byte, error) {
	chainID, err := ParseUint256("chainId", string(ctx.ChainID))
	if err != nil {
		return [32]byte{}, err
	}
	escrow, err := ParseAddress("escrowAddr", ctx.Escrow)
	if err != nil {
		return [32]byte{}, err
	}
	productID, err := ParseUint256("productId", string(ctx.ProductID))
	if err != nil {
		return [32]byte{}, err
	}
	if ctx.Stage > MaxStage {
		return [32]byte{}, invalidf("stage: must be 0..%d, got %d", MaxStage, ctx.Stage)
	}
	if ctx.SchemaVersion == "" {
		return [32]byte{}, invalidf("schemaVersion: required")
	}
	version := VersionVC
	if ctx.PreviousVCCid != "" {
		version = VersionVCV2
	}
	p := new(packer).
		str(version).
		uint256(chainID).
		address(escrow).
		uint256(productID).
		uint8(ctx.Stage).
		str(ctx.SchemaVersion)
	if ctx.PreviousVCCid != "" {
		p.str(ctx.PreviousVCCid)
	}
	return p.sum(), nil
}

// TxHashTag computes the tag shared by a buyer's purchase and delivery
// transaction-hash commitments.
func TxHashTag(ctx TxContext) ([32]byte, error) {
	chainID, err := ParseUint256("chainId", string(ctx.ChainID))
	if err != nil {
		return [32]byte{}, err
	}
	escrow, err := ParseAddress("escrowAddr", ctx.Escrow)
	if err != nil {
		return [32]byte{}, err
	}
	productID, err := ParseUint256("productId", string(ctx.ProductID))
	if err != nil {
		return [32]byte{}, err
	}
	buyer, err := ParseAddress("buyerAddress", ctx.Buyer)
	if err != nil {
		return [32]byte{}, err
	}
	return new(packer).
		str(VersionTx).
		uint256(chainID).
		address(escrow).
		uint256(productID).
		address(buyer).
		sum(), nil
}

// DeterministicBlinding derives the blinding seller and buyer both use for a
// product's price commitment.
func DeterministicBlinding(product, seller string) ([32]byte, error) {
	p, err := ParseAddress("productAddress", product)
	if err != nil {
		return [32]byte{}, err
	}
	s, err := ParseAddress("sellerAddress", seller)
	if err != nil {
		return [32]byte{}, err
	}
	return new(packer).address(p).address(s).sum(), nil
}

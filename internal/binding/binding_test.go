package binding

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const (
	escrow = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	buyer  = "0x70997970C51812dc3A010C7d50dec79C8b9A5566"
	seller = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func hexOf(b [32]byte) string { return hex.EncodeToString(b[:]) }

func TestVCTagVectors(t *testing.T) {
	v1, err := VCTag(VCContext{ChainID: "1337", Escrow: escrow, ProductID: "7", Stage: 1, SchemaVersion: "1.0"})
	require.NoError(t, err)
	require.Equal(t, "070112f4745703264ed4942085ae3477315e52a264caf78fb25d49302a70c5bb", hexOf(v1))

	v2, err := VCTag(VCContext{ChainID: "1337", Escrow: escrow, ProductID: "7", Stage: 2, SchemaVersion: "1.0", PreviousVCCid: "bafyprev"})
	require.NoError(t, err)
	require.Equal(t, "3c02c581dca043b567e2db542a2e62d203b38f80cb6980e4d4088c17170453b6", hexOf(v2))
}

func TestTxHashTagVector(t *testing.T) {
	tag, err := TxHashTag(TxContext{ChainID: "11155111", Escrow: escrow, ProductID: "42", Buyer: buyer})
	require.NoError(t, err)
	require.Equal(t, "4e1222783fb35368977d6b3eb7f037c5c93090be6500b09c7d0c76ebc36b9951", hexOf(tag))
}

func TestDeterministicBlindingVector(t *testing.T) {
	b, err := DeterministicBlinding(escrow, seller)
	require.NoError(t, err)
	require.Equal(t, "4ea998ca3fa666ee951d89ca083ee8d6c80e7c51907e655d35a5375ac370aece", hexOf(b))

	lower, err := DeterministicBlinding(strings.ToLower(escrow), strings.TrimPrefix(strings.ToLower(seller), "0x"))
	require.NoError(t, err)
	require.Equal(t, b, lower)

	swapped, err := DeterministicBlinding(seller, escrow)
	require.NoError(t, err)
	require.NotEqual(t, b, swapped)
}

func TestIntegerForms(t *testing.T) {
	dec, err := TxHashTag(TxContext{ChainID: "1337", Escrow: escrow, ProductID: "255", Buyer: buyer})
	require.NoError(t, err)
	hx, err := TxHashTag(TxContext{ChainID: "0x539", Escrow: escrow, ProductID: "0xff", Buyer: buyer})
	require.NoError(t, err)
	require.Equal(t, dec, hx)
}

func TestInvalidContexts(t *testing.T) {
	base := VCContext{ChainID: "1", Escrow: escrow, ProductID: "1", SchemaVersion: "1.0"}
	cases := map[string]func(c *VCContext){
		"stage":         func(c *VCContext) { c.Stage = 3 },
		"schema":        func(c *VCContext) { c.SchemaVersion = "" },
		"chain missing": func(c *VCContext) { c.ChainID = "" },
		"chain text":    func(c *VCContext) { c.ChainID = "sepolia" },
		"escrow short":  func(c *VCContext) { c.Escrow = "0x1234" },
		"product big":   func(c *VCContext) { c.ProductID = Number("0x1" + strings.Repeat("0", 64)) },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		_, err := VCTag(c)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrInvalidContext), name)
	}
	_, err := DeterministicBlinding(escrow, "not-an-address")
	require.True(t, errors.Is(err, ErrInvalidContext))
}

func TestVersionSeparation(t *testing.T) {
	c := VCContext{ChainID: "1", Escrow: escrow, ProductID: "1", Stage: 0, SchemaVersion: "1.0"}
	a, err := VCTag(c)
	require.NoError(t, err)
	c.PreviousVCCid = "x"
	b, err := VCTag(c)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestNumberJSON(t *testing.T) {
	var ctx TxContext
	require.NoError(t, json.Unmarshal([]byte(`{"chainId":1337,"escrowAddr":"`+escrow+`","productId":"0xff","buyerAddress":"`+buyer+`"}`), &ctx))
	require.Equal(t, Number("1337"), ctx.ChainID)
	require.Equal(t, Number("0xff"), ctx.ProductID)
	require.Error(t, json.Unmarshal([]byte(`{"chainId":true}`), &ctx))
}

package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"zkcommit/internal/binding"
	"zkcommit/internal/service"
	"zkcommit/internal/zkp"
)

const kindEquality = "equality"

func parseCLIKind(s string) (zkp.Kind, bool, error) {
	if s == kindEquality {
		return zkp.KindKnowledge, true, nil
	}
	k, err := zkp.ParseKind(s)
	return k, false, err
}

func (a *app) proveCmd() *cobra.Command {
	var (
		txHash, target, tag, blinding string
		value                         uint64
		bits                          int
	)
	cmd := &cobra.Command{
		Use:   "prove <" + usageKinds() + ">",
		Short: "Commit to a secret and prove a statement about it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, equality, err := parseCLIKind(args[0])
			if err != nil {
				return err
			}
			switch {
			case equality:
				return a.do(cmd, service.OpProveEquality, service.EqualityRequest{
					TxHash: txHash, TargetHex: target, BindingTagHex: tag,
				}, false)
			case kind == zkp.KindRange:
				if !cmd.Flags().Changed("value") {
					return errors.New("--value is required")
				}
				op := service.OpProveRange
				if blinding != "" {
					op = service.OpProveRangeBlinded
				}
				return a.do(cmd, op, service.ValueRequest{
					Value: &value, BlindingHex: blinding, BindingTagHex: tag, BitWidth: bits,
				}, false)
			}
			op := map[zkp.Kind]string{
				zkp.KindKnowledge:     service.OpProveKnowledge,
				zkp.KindWideRange:     service.OpProveWideRange,
				zkp.KindWideKnowledge: service.OpProveWideKnowledge,
			}[kind]
			return a.do(cmd, op, service.TxHashRequest{TxHash: txHash, BindingTagHex: tag}, false)
		},
	}
	f := cmd.Flags()
	f.StringVar(&txHash, "tx-hash", "", "32-byte secret as hex")
	f.StringVar(&target, "target", "", "public 32-byte value the secret must equal (equality)")
	f.StringVar(&tag, "tag", "", "32-byte binding tag as hex")
	f.Uint64Var(&value, "value", 0, "value to commit (range)")
	f.StringVar(&blinding, "blinding", "", "32-byte blinding as hex (range)")
	f.IntVar(&bits, "bits", 0, "range bit width: 8, 16, 32 or 64")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var (
		commitments        []string
		proof, target, tag string
		bits               int
	)
	cmd := &cobra.Command{
		Use:   "verify <" + usageKinds() + ">",
		Short: "Check a proof against its commitments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, equality, err := parseCLIKind(args[0])
			if err != nil {
				return err
			}
			req := service.VerifyRequest{Proof: proof, TargetHex: target, BindingTagHex: tag, BitWidth: bits}
			wide := kind == zkp.KindWideRange || kind == zkp.KindWideKnowledge
			if wide {
				req.Commitments = commitments
			} else {
				if len(commitments) != 1 {
					return errors.Newf("%s takes exactly one --commitment", args[0])
				}
				req.Commitment = commitments[0]
			}
			var op string
			switch {
			case equality:
				op = service.OpVerifyEquality
			case kind == zkp.KindKnowledge:
				op = service.OpVerifyKnowledge
			case kind == zkp.KindRange:
				op = service.OpVerifyRange
			case kind == zkp.KindWideRange:
				op = service.OpVerifyWideRange
			default:
				op = service.OpVerifyWideKnowledge
			}
			return a.do(cmd, op, req, true)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&commitments, "commitment", nil, "commitment hex; repeat or comma-separate for the four-limb kinds")
	f.StringVar(&proof, "proof", "", "proof hex")
	f.StringVar(&target, "target", "", "public 32-byte value (equality)")
	f.StringVar(&tag, "tag", "", "32-byte binding tag as hex")
	f.IntVar(&bits, "bits", 0, "range bit width: 8, 16, 32 or 64")
	return cmd
}

func (a *app) commitCmd() *cobra.Command {
	var txHash, tag string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit to a transaction hash and self-check the knowledge proof",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.do(cmd, service.OpCommitTxHash, service.TxHashRequest{TxHash: txHash, BindingTagHex: tag}, true)
		},
	}
	cmd.Flags().StringVar(&txHash, "tx-hash", "", "32-byte transaction hash as hex")
	cmd.Flags().StringVar(&tag, "tag", "", "32-byte binding tag as hex")
	return cmd
}

func (a *app) tagCmd() *cobra.Command {
	var (
		chainID, escrow, productID, schema, prev, buyer string
		stage                                           uint8
	)
	cmd := &cobra.Command{
		Use:   "tag <vc|tx>",
		Short: "Derive a binding tag from an escrow context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "vc":
				return a.do(cmd, service.OpBindingTag, binding.VCContext{
					ChainID:       binding.Number(chainID),
					Escrow:        escrow,
					ProductID:     binding.Number(productID),
					Stage:         stage,
					SchemaVersion: schema,
					PreviousVCCid: prev,
				}, false)
			case "tx":
				return a.do(cmd, service.OpTxBindingTag, binding.TxContext{
					ChainID:   binding.Number(chainID),
					Escrow:    escrow,
					ProductID: binding.Number(productID),
					Buyer:     buyer,
				}, false)
			}
			return errors.Newf("unknown tag kind %q (want vc or tx)", args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&chainID, "chain-id", "", "chain id, decimal or 0x hex")
	f.StringVar(&escrow, "escrow", "", "escrow contract address")
	f.StringVar(&productID, "product-id", "", "product id, decimal or 0x hex")
	f.Uint8Var(&stage, "stage", 0, "credential stage 0..2 (vc)")
	f.StringVar(&schema, "schema-version", "1.0", "credential schema version (vc)")
	f.StringVar(&prev, "previous-cid", "", "previous credential CID; selects the v2 layout (vc)")
	f.StringVar(&buyer, "buyer", "", "buyer address (tx)")
	return cmd
}

func (a *app) blindingCmd() *cobra.Command {
	var product, seller string
	cmd := &cobra.Command{
		Use:   "blinding",
		Short: "Derive the shared price blinding for a product and seller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.do(cmd, service.OpDeterministicBlinding, service.BlindingRequest{
				ProductAddress: product, SellerAddress: seller,
			}, false)
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "product (escrow) address")
	cmd.Flags().StringVar(&seller, "seller", "", "seller address")
	return cmd
}

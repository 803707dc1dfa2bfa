package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/chesschain-go/internal/services/integrity"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and verify sessions",
	}

	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionVerifyCmd())
	cmd.AddCommand(newSessionProofCmd())

	return cmd
}

func sessionPath(id string) string {
	return "/api/v1/sessions/" + url.PathEscape(id)
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a live or archived session and its move log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Session

			if err := client.Get(cmd.Context(), sessionPath(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			out.Print(result)
			return nil
		},
	}
}

func newSessionVerifyCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "verify <session-id>",
		Short: "Compare a session's move log against a recorded digest",
		Long: `Recompute the digest of a session's move log on the server and compare it
with --root. For archived sessions --root may be omitted, in which case the
digest stored at archive time is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if root != "" {
				if _, err := integrity.ParseRoot(root); err != nil {
					return err
				}
				body["root"] = root
			}

			var result DigestVerification
			if err := client.Post(cmd.Context(), sessionPath(args[0])+"/verify", body, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Hex digest to compare against")

	return cmd
}

func newSessionProofCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proof <session-id> <sequence>",
		Short: "Fetch and check the inclusion proof of one move",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sequence, err := strconv.Atoi(args[1])
			if err != nil || sequence < 0 {
				return fmt.Errorf("sequence must be a non-negative integer, got %q", args[1])
			}

			var proof InclusionProof
			path := fmt.Sprintf("%s/moves/%d/proof", sessionPath(args[0]), sequence)
			if err := client.Get(cmd.Context(), path, &proof); err != nil {
				return err
			}

			valid, err := checkProof(proof)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			out.Print(ProofCheck{InclusionProof: proof, Valid: valid})
			if !valid {
				return fmt.Errorf("inclusion proof for move %d does not reach root %s", sequence, proof.Root)
			}
			return nil
		},
	}
}

// checkProof recomputes the root from the leaf and siblings locally
func checkProof(p InclusionProof) (bool, error) {
	leaf, err := integrity.ParseRoot(p.Leaf)
	if err != nil {
		return false, fmt.Errorf("leaf: %w", err)
	}
	root, err := integrity.ParseRoot(p.Root)
	if err != nil {
		return false, fmt.Errorf("root: %w", err)
	}
	siblings := make([]integrity.Root, len(p.Proof))
	for i, s := range p.Proof {
		if siblings[i], err = integrity.ParseRoot(s); err != nil {
			return false, fmt.Errorf("sibling %d: %w", i, err)
		}
	}
	return integrity.VerifyProof(leaf, siblings, root), nil
}

package cli

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the Ed25519 key used to sign moves",
	}

	cmd.AddCommand(newKeysGenerateCmd())
	cmd.AddCommand(newKeysShowCmd())
	cmd.AddCommand(newKeysSignCmd())

	return cmd
}

func keyInfo(priv ed25519.PrivateKey) (KeyInfo, error) {
	pub := priv.Public().(ed25519.PublicKey)
	authorized, err := signature.AuthorizedKey(pub)
	if err != nil {
		return KeyInfo{}, err
	}
	return KeyInfo{
		KeyFile:       cfg.KeyFile,
		PublicKey:     hex.EncodeToString(pub),
		AuthorizedKey: authorized,
	}, nil
}

func newKeysGenerateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := cfg.GenerateKey(force)
			if err != nil {
				return err
			}
			info, err := keyInfo(priv)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			out.Print(info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing key file")

	return cmd
}

func newKeysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the public half of the signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := cfg.LoadKey()
			if err != nil {
				return err
			}
			info, err := keyInfo(priv)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			out.Print(info)
			return nil
		},
	}
}

func newKeysSignCmd() *cobra.Command {
	var promotion string

	cmd := &cobra.Command{
		Use:   "sign <session-id> <sequence> <from> <to>",
		Short: "Sign the canonical payload of a move",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sequence int
			if _, err := fmt.Sscanf(args[1], "%d", &sequence); err != nil || sequence < 0 {
				return fmt.Errorf("sequence must be a non-negative integer, got %q", args[1])
			}
			move := model.Move{From: args[2], To: args[3], Promotion: promotion}
			if err := move.Validate(); err != nil {
				return err
			}

			priv, err := cfg.LoadKey()
			if err != nil {
				return err
			}

			payload := signature.CanonicalMovePayload(model.SessionID(args[0]), sequence, move)
			out := NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			out.Print(SignedPayload{
				Payload:   string(payload),
				Signature: hex.EncodeToString(signature.Sign(priv, payload)),
				PublicKey: hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&promotion, "promotion", "", "Promotion piece (q, r, b or n)")

	return cmd
}

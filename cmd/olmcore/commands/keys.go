package commands

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	var generate int
	var publish bool
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Show identity and one-time keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := loadAccount()
			if err != nil {
				return err
			}
			dirty := false
			if generate > 0 {
				if err := acct.GenerateOneTimeKeys(rand.Reader, generate); err != nil {
					return err
				}
				dirty = true
			}

			b64 := base64.RawStdEncoding.EncodeToString
			fmt.Printf("curve25519 identity: %s\n", b64(acct.IdentityCurve25519.Public[:]))
			fmt.Printf("ed25519 identity:    %s\n", b64(acct.IdentityEd25519.Public[:]))
			for _, k := range acct.OneTimeKeys {
				state := "unpublished"
				if k.Published {
					state = "published"
				}
				fmt.Printf("one-time key %d (%s): %s\n", k.ID, state, b64(k.Key.Public[:]))
			}

			if publish {
				acct.MarkKeysAsPublished()
				dirty = true
			}
			if dirty {
				return saveAccount(acct)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&generate, "generate", 0, "generate this many one-time keys first")
	cmd.Flags().BoolVar(&publish, "mark-published", false, "mark all one-time keys as published")
	return cmd
}

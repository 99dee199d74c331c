package commands

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"olmcore/internal/account"
	"olmcore/internal/crypto"
	"olmcore/internal/util/memzero"
)

const accountState = "account"

func initCmd() *cobra.Command {
	var oneTimeKeys int
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new account with fresh identity keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := st.LoadState(accountState); err == nil {
				return fmt.Errorf("account already exists in %s", home)
			}
			acct, err := account.New(rand.Reader)
			if err != nil {
				return err
			}
			if err := acct.GenerateOneTimeKeys(rand.Reader, oneTimeKeys); err != nil {
				return err
			}
			if err := saveAccount(acct); err != nil {
				return err
			}
			fmt.Printf("created account %s with %d one-time keys\n",
				crypto.Fingerprint(acct.IdentityCurve25519.Public[:]), oneTimeKeys)
			return nil
		},
	}
	cmd.Flags().IntVar(&oneTimeKeys, "one-time-keys", 10, "number of one-time keys to generate")
	return cmd
}

func loadAccount() (*account.Account, error) {
	key, err := pickleKey()
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	pickled, err := st.LoadState(accountState)
	if err != nil {
		return nil, err
	}
	return account.Unpickle(key, pickled)
}

func saveAccount(acct *account.Account) error {
	key, err := pickleKey()
	if err != nil {
		return err
	}
	defer memzero.Zero(key)
	pickled, err := acct.Pickle(key)
	if err != nil {
		return err
	}
	return st.SaveState(accountState, pickled)
}

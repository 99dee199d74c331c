package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"olmcore/internal/store"
)

var (
	home       string
	passphrase string

	st *store.FileStore
)

func Execute() error {
	root := &cobra.Command{
		Use:   "olmcore",
		Short: "Pairwise and group session state tool",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".olmcore")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			st = store.NewFileStore(home)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.olmcore)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting stored state")

	root.AddCommand(initCmd(), keysCmd(), groupCmd())
	return root.Execute()
}

// pickleKey derives the pickle key for the active store and passphrase.
func pickleKey() ([]byte, error) {
	return st.DeriveKey(passphrase)
}

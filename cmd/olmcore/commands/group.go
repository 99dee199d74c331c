package commands

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"olmcore/internal/megolm"
	"olmcore/internal/util/memzero"
)

const (
	outboundGroupState = "group-outbound"
	inboundGroupState  = "group-inbound"
)

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group session management",
	}
	cmd.AddCommand(groupNewCmd(), groupKeyCmd(), groupEncryptCmd(), groupJoinCmd(), groupDecryptCmd())
	return cmd
}

func groupNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a new outbound group session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := megolm.NewOutboundGroupSession(rand.Reader)
			if err != nil {
				return err
			}
			if err := saveOutboundGroup(sess); err != nil {
				return err
			}
			fmt.Printf("created group session %s\n", sess.ID())
			return nil
		},
	}
}

func groupKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Print the session key at the current index",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadOutboundGroup()
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", sess.SessionKey())
			return nil
		},
	}
}

func groupEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <plaintext>",
		Short: "Encrypt one group message and advance the ratchet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadOutboundGroup()
			if err != nil {
				return err
			}
			out, err := sess.Encrypt([]byte(args[0]))
			if err != nil {
				return err
			}
			if err := saveOutboundGroup(sess); err != nil {
				return err
			}
			fmt.Printf("%s\n", out)
			return nil
		},
	}
}

func groupJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <session-key>",
		Short: "Create an inbound group session from a session key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := megolm.NewInboundGroupSession([]byte(args[0]))
			if err != nil {
				return err
			}
			if err := saveInboundGroup(sess); err != nil {
				return err
			}
			fmt.Printf("joined group session %s at index %d\n", sess.ID(), sess.FirstKnownIndex())
			return nil
		},
	}
}

func groupDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <message>",
		Short: "Decrypt one group message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadInboundGroup()
			if err != nil {
				return err
			}
			plaintext, index, err := sess.Decrypt([]byte(args[0]))
			if err != nil {
				return err
			}
			if err := saveInboundGroup(sess); err != nil {
				return err
			}
			fmt.Printf("[%d] %s\n", index, plaintext)
			return nil
		},
	}
}

func loadOutboundGroup() (*megolm.OutboundGroupSession, error) {
	key, err := pickleKey()
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	pickled, err := st.LoadState(outboundGroupState)
	if err != nil {
		return nil, err
	}
	return megolm.UnpickleOutboundGroupSession(key, pickled)
}

func saveOutboundGroup(sess *megolm.OutboundGroupSession) error {
	key, err := pickleKey()
	if err != nil {
		return err
	}
	defer memzero.Zero(key)
	pickled, err := sess.Pickle(key)
	if err != nil {
		return err
	}
	return st.SaveState(outboundGroupState, pickled)
}

func loadInboundGroup() (*megolm.InboundGroupSession, error) {
	key, err := pickleKey()
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	pickled, err := st.LoadState(inboundGroupState)
	if err != nil {
		return nil, err
	}
	return megolm.UnpickleInboundGroupSession(key, pickled)
}

func saveInboundGroup(sess *megolm.InboundGroupSession) error {
	key, err := pickleKey()
	if err != nil {
		return err
	}
	defer memzero.Zero(key)
	pickled, err := sess.Pickle(key)
	if err != nil {
		return err
	}
	return st.SaveState(inboundGroupState, pickled)
}

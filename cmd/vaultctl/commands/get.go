package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"passvault/internal/vault"
)

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [source]",
		Short: "Fetch and decrypt the password for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(s *vault.Session) error {
				ciphertext, err := s.Password(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				plaintext, err := s.DecryptPassword(ciphertext)
				if err != nil {
					return err
				}
				fmt.Println(plaintext)
				return nil
			})
		},
	}
}

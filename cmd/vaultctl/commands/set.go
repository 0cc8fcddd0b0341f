package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"passvault/internal/vault"
)

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [source] [password]",
		Short: "Store a password for a source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(s *vault.Session) error {
				body, err := s.SetPassword(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if body != vault.SuccessBody {
					return fmt.Errorf("server refused password: %s", body)
				}
				fmt.Printf("Stored password for %s\n", args[0])
				return nil
			})
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"passvault/internal/vault"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify your key against the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(s *vault.Session) error {
				fmt.Printf("Logged in as %s\n", user)
				return nil
			})
		},
	}
}

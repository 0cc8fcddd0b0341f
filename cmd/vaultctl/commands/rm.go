package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"passvault/internal/vault"
)

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [source]",
		Short: "Delete the password stored for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(s *vault.Session) error {
				body, err := s.DeletePassword(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if body != vault.SuccessBody {
					return fmt.Errorf("server refused delete: %s", body)
				}
				fmt.Printf("Deleted password for %s\n", args[0])
				return nil
			})
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"passvault/internal/vault"
)

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the sources with stored passwords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(s *vault.Session) error {
				sources, err := s.Sources(cmd.Context())
				if err != nil {
					return err
				}
				if len(sources) == 0 {
					fmt.Println("No passwords stored")
					return nil
				}
				for _, source := range sources {
					fmt.Println(source)
				}
				return nil
			})
		},
	}
}

package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"passvault/internal/vault"
)

func deleteUserCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete your account and every stored password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if !force && !confirm(fmt.Sprintf("Delete user %s and all stored passwords? [y/N] ", user)) {
				fmt.Println("Aborted")
				return nil
			}
			return withLogin(cmd.Context(), func(s *vault.Session) error {
				body, err := s.DeleteUser(cmd.Context())
				if err != nil {
					return err
				}
				if body != vault.SuccessBody {
					return fmt.Errorf("server refused delete: %s", body)
				}
				fmt.Printf("Deleted user %s\n", user)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

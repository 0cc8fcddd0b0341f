package commands

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"passvault/internal/keys"
	"passvault/internal/vault"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Generate a keypair and create a vault account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user = args[0]

			key, err := loadOrGenerateKey()
			if err != nil {
				return err
			}

			s := vault.New(vaultClient, key)
			body, err := s.CreateUser(cmd.Context(), user)
			if err != nil {
				return err
			}
			if body != vault.SuccessBody {
				return fmt.Errorf("server refused registration: %s", body)
			}

			fmt.Printf("Registered %s (keys in %s)\n", user, cfg.KeyDir)
			return nil
		},
	}
}

// loadOrGenerateKey reuses an existing keypair so that one identity can
// register on more than one server.
func loadOrGenerateKey() (key *rsa.PrivateKey, err error) {
	if _, statErr := os.Stat(privateKeyPath()); statErr == nil {
		return keys.LoadPrivate(privateKeyPath(), passphrase)
	}

	key, err = keys.Generate()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.KeyDir, 0o700); err != nil {
		return nil, err
	}
	if err := keys.SavePrivate(privateKeyPath(), key, passphrase); err != nil {
		return nil, err
	}
	if err := keys.SavePublic(publicKeyPath(), &key.PublicKey); err != nil {
		return nil, err
	}
	return key, nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"passvault/internal/client"
	"passvault/internal/config"
	"passvault/internal/keys"
	"passvault/internal/transport"
	"passvault/internal/vault"
)

var (
	configPath string
	passphrase string
	user       string

	cfg         config.ClientConfig
	vaultClient *client.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Password vault CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				configPath = filepath.Join(dir, ".vaultctl", "config.toml")
			}

			// init rewrites the config file, possibly a corrupt one
			if cmd.Name() == "init" {
				return nil
			}

			var err error
			if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
				cfg = config.DefaultClientConfig()
			} else if cfg, err = config.LoadClientConfig(configPath); err != nil {
				return err
			}

			if user == "" {
				user = cfg.User
			}

			clientCfg := client.Config{
				Address:     cfg.Address(),
				ReadTimeout: cfg.ReadTimeout(),
			}
			if cfg.TLS {
				clientCfg.UseTLS = true
				clientCfg.ServerName = cfg.ServerName
				if cfg.CAFile != "" {
					clientCfg.Trust = transport.FileTrust{CAFile: cfg.CAFile}
				} else {
					clientCfg.Trust = transport.SystemTrust{}
				}
			}
			vaultClient = client.New(clientCfg)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.vaultctl/config.toml)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the private key")
	root.PersistentFlags().StringVarP(&user, "user", "u", "", "vault username (overrides config)")

	root.AddCommand(initCmd(), registerCmd(), loginCmd(), sourcesCmd(), getCmd(), setCmd(), rmCmd(), deleteUserCmd())
	return root.Execute()
}

func privateKeyPath() string {
	return filepath.Join(cfg.KeyDir, "vault.key")
}

func publicKeyPath() string {
	return filepath.Join(cfg.KeyDir, "vault.pub")
}

func requireUser() error {
	if user == "" {
		return errors.New("no username: pass --user or set it in the config file")
	}
	return nil
}

// openSession loads the private key and wraps the shared client.
func openSession() (*vault.Session, error) {
	key, err := keys.LoadPrivate(privateKeyPath(), passphrase)
	if err != nil {
		return nil, fmt.Errorf("load private key %s: %w", privateKeyPath(), err)
	}
	return vault.New(vaultClient, key), nil
}

// withLogin runs fn inside a logged-in session and always tears the
// server session down afterwards.
func withLogin(ctx context.Context, fn func(*vault.Session) error) error {
	if err := requireUser(); err != nil {
		return err
	}
	s, err := openSession()
	if err != nil {
		return err
	}
	if err := s.Login(ctx, user); err != nil {
		return err
	}
	defer s.Logout(ctx)
	return fn(s)
}

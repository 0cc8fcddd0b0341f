package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"passvault/internal/config"
	"passvault/internal/observability"
	"passvault/internal/server"
	"passvault/internal/server/store"
)

func main() {
	observability.InitLogger("vaultd")

	configPath := flag.String("config", "vaultd.toml", "path to the server config file")
	initConfig := flag.Bool("init-config", false, "write a config template and exit")
	flag.Parse()

	if *initConfig {
		if err := config.WriteTemplate(*configPath, "server", false); err != nil {
			log.Fatal().Err(err).Msg("failed to write config template")
		}
		log.Info().Str("path", *configPath).Msg("wrote config template")
		return
	}

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load server config")
	}
	log.Info().Str("path", *configPath).Msg("loaded server config")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to open store")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AdminAddr != "" {
		admin := server.NewAdmin(cfg.AdminAddr)
		go func() {
			if err := admin.Serve(ctx); err != nil {
				log.Error().Err(err).Msg("admin endpoint stopped")
			}
		}()
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin endpoint started")
	}

	srv := server.New(server.Config{
		Addr:        cfg.Addr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
		SessionTTL:  cfg.SessionTTL(),
	}, st)

	if err := srv.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("vault server stopped")
	}
	log.Info().Msg("vault server shut down")
}

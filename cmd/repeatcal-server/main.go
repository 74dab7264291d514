package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"repeatcal/internal/config"
	appLog "repeatcal/internal/log"
	"repeatcal/internal/repository"
	"repeatcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envFile    string
	listen     string
}

func main() {
	appLog.Info("repeatcal-server starting", "version", "0.1.0")

	flags := parseFlags()

	// A missing .env is fine; anything else is reported.
	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load env file", "path", flags.envFile, "err", err.Error())
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.Getenv)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"storage_driver", conf.Storage.Driver,
		"storage_path", conf.Storage.Path,
		"cors_origins", len(conf.CORS.AllowedOrigins),
		"basic_auth", conf.BasicAuth != nil,
	)

	repo, err := openRepository(conf.Storage)
	if err != nil {
		appLog.Error("failed to open storage", err, "driver", conf.Storage.Driver)
		os.Exit(1)
	}
	defer repo.Close()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := web.StartServer(ctx, conf, repo); err != nil {
		appLog.Error("HTTP server stopped with error", err)
		repo.Close()
		os.Exit(1)
	}
	appLog.Info("repeatcal-server exiting")
}

func openRepository(sc config.StorageConfig) (repository.Repository, error) {
	switch sc.Driver {
	case "sqlite":
		return repository.OpenSQLite(sc.Path)
	default:
		return repository.NewMemory(), nil
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/repeatcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Optional dotenv file with REPEATCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")

	flag.Parse()

	return cfg
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MarkoPoloResearchLab/gamification/internal/config"
)

const (
	envPrefix = "AWARDSD"

	flagDatabaseURL         = "database-url"
	flagStoreBackend        = "store-backend"
	flagGRPCListenAddr      = "grpc-listen-addr"
	flagHTTPListenAddr      = "http-listen-addr"
	flagCatalogPath         = "catalog"
	flagLockBackend         = "lock-backend"
	flagRedisAddr           = "redis-addr"
	flagRedisLockTTL        = "redis-lock-ttl"
	flagSessionSigningKey   = "session-signing-key"
	flagSessionIssuer       = "session-issuer"
	flagSessionCookieName   = "session-cookie-name"
	flagAdminRole           = "admin-role"
	flagAllowedOrigins      = "allowed-origins"
	flagCompletionRateLimit = "completion-rate-limit"
	flagRequestTimeout      = "request-timeout"
	flagLogLevel            = "log-level"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "awardsd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	settings := viper.New()
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "awardsd",
		Short:         "Gamification awards ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, settings, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagDatabaseURL, "awards.db", "SQLite path, sqlite:// or postgres:// url")
	flags.String(flagStoreBackend, config.StoreBackendGorm, "store implementation: gorm or pgx")
	flags.String(flagGRPCListenAddr, ":7000", "gRPC listen address")
	flags.String(flagHTTPListenAddr, "", "HTTP listen address (empty disables the HTTP api)")
	flags.String(flagCatalogPath, "", "catalog TOML file (empty uses the embedded catalog)")
	flags.String(flagLockBackend, config.LockBackendMemory, "per-user lock: memory or redis")
	flags.String(flagRedisAddr, "", "Redis address for the redis lock backend")
	flags.Duration(flagRedisLockTTL, 0, "Redis lock lease")
	flags.String(flagSessionSigningKey, "", "tauth session signing key")
	flags.String(flagSessionIssuer, "", "tauth session issuer")
	flags.String(flagSessionCookieName, "", "tauth session cookie name")
	flags.String(flagAdminRole, "", "session role allowed to call admin routes")
	flags.String(flagAllowedOrigins, "", "comma-separated CORS origins")
	flags.String(flagCompletionRateLimit, "", "per-user completion rate, e.g. 120-M")
	flags.Duration(flagRequestTimeout, 0, "per-request storage timeout")
	flags.String(flagLogLevel, "info", "debug, info, warn or error")

	cmd.AddCommand(newServeCommand(cfg), newReconcileCommand(cfg), newCatalogCommand(), newMigrateCommand(cfg))
	return cmd
}

func loadConfig(cmd *cobra.Command, settings *viper.Viper, cfg *config.Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	if err := settings.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	*cfg = config.Config{
		DatabaseURL:         settings.GetString(flagDatabaseURL),
		StoreBackend:        settings.GetString(flagStoreBackend),
		GRPCListenAddr:      settings.GetString(flagGRPCListenAddr),
		HTTPListenAddr:      settings.GetString(flagHTTPListenAddr),
		CatalogPath:         settings.GetString(flagCatalogPath),
		LockBackend:         settings.GetString(flagLockBackend),
		RedisAddr:           settings.GetString(flagRedisAddr),
		RedisLockTTL:        settings.GetDuration(flagRedisLockTTL),
		SessionSigningKey:   settings.GetString(flagSessionSigningKey),
		SessionIssuer:       settings.GetString(flagSessionIssuer),
		SessionCookieName:   settings.GetString(flagSessionCookieName),
		AdminRole:           settings.GetString(flagAdminRole),
		AllowedOrigins:      config.ParseAllowedOrigins(settings.GetString(flagAllowedOrigins)),
		CompletionRateLimit: settings.GetString(flagCompletionRateLimit),
		RequestTimeout:      settings.GetDuration(flagRequestTimeout),
		LogLevel:            settings.GetString(flagLogLevel),
	}
	return cfg.Validate()
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(parsed)
	return zapConfig.Build()
}

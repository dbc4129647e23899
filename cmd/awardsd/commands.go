package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/gamification/internal/catalogfile"
	"github.com/MarkoPoloResearchLab/gamification/internal/config"
	"github.com/MarkoPoloResearchLab/gamification/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	flagUser     = "user"
	flagCurrency = "currency"
	flagFile     = "file"
)

func newReconcileCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild a wallet balance from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawUser, _ := cmd.Flags().GetString(flagUser)
			rawCurrency, _ := cmd.Flags().GetString(flagCurrency)
			userID, err := ledger.NewUserID(rawUser)
			if err != nil {
				return err
			}
			currency, err := ledger.NewCurrencyKey(rawCurrency)
			if err != nil {
				return err
			}
			rt, err := newDaemon(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			result, err := rt.service.Reconcile(cmd.Context(), userID, currency)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user=%s currency=%s before=%d after=%d drift=%d\n",
				userID, currency, result.Before.Balance, result.After.Balance, result.Drift)
			return nil
		},
	}
	cmd.Flags().String(flagUser, "", "user id")
	cmd.Flags().String(flagCurrency, "", "currency key")
	_ = cmd.MarkFlagRequired(flagUser)
	_ = cmd.MarkFlagRequired(flagCurrency)
	return cmd
}

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog tooling",
	}
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString(flagFile)
			catalog, err := catalogfile.Load(path)
			if err != nil {
				return err
			}
			ranks := 0
			for _, currency := range catalog.RankCurrencies() {
				ranks += len(catalog.Ranks(currency))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d currencies, %d badges, %d ranks\n",
				len(catalog.Currencies()), len(catalog.Badges()), ranks)
			return nil
		},
	}
	validate.Flags().String(flagFile, "", "catalog TOML file (empty validates the embedded catalog)")
	cmd.AddCommand(validate)
	return cmd
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations or auto-migrate SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			driver, _, err := resolveDriver(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if driver == driverPostgres {
				result, err := pgstore.Migrate(cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "postgres schema at version %d (changed=%t)\n", result.Version, result.Changed)
				return nil
			}
			gormDB, cleanup, driver, err := openDatabase(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database open: %w", err)
			}
			defer func() { _ = cleanup() }()
			if err := prepareSchema(gormDB, driver, cfg.DatabaseURL, logger); err != nil {
				return err
			}
			logger.Debug("sqlite schema ready", zap.String("database_url", cfg.DatabaseURL))
			fmt.Fprintln(cmd.OutOrStdout(), "sqlite schema ready")
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	storefront "github.com/luxecommerce/storefront"
	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/logger"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	storage    string
	profile    string
}

func (f *globalFlags) options(extra ...core.Option) []core.Option {
	var opts []core.Option
	if f.configPath != "" {
		opts = append(opts, storefront.WithConfigFile(f.configPath))
	}
	if f.logLevel != "" {
		opts = append(opts, storefront.WithLogLevel(f.logLevel))
	}
	if f.storage != "" {
		opts = append(opts, storefront.WithStorageProvider(f.storage))
	}
	if f.profile != "" {
		opts = append(opts, storefront.WithProfile(f.profile))
	}
	return append(opts, extra...)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Luxe Commerce storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.storage, "storage", "", "Storage provider (memory, redis, sqlite)")
	cmd.PersistentFlags().StringVar(&flags.profile, "profile", "", "Browser profile to operate on")

	cmd.AddCommand(
		newServeCmd(flags),
		newCatalogCmd(flags),
		newOrdersCmd(flags),
		newStatsCmd(flags),
		newDemoCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// app is the process wiring built from configuration.
type app struct {
	cfg      *core.Config
	logger   *logger.ZapLogger
	tel      telemetry.Provider
	storage  core.StorageBackend
	sessions *storefront.Manager
}

func openApp(ctx context.Context, flags *globalFlags, extra ...core.Option) (*app, error) {
	cfg, err := storefront.NewConfig(flags.options(extra...)...)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewFromConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewFromConfig(ctx, cfg.Telemetry, storefront.Version)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	storage, err := core.NewMemory(cfg.Storage, log.WithComponent("storage"))
	if err != nil {
		_ = tel.Shutdown(ctx)
		_ = log.Sync()
		return nil, err
	}

	sessions, err := storefront.NewManager(storefront.Deps{
		Config:    cfg,
		Memory:    storage,
		Logger:    log,
		Telemetry: tel,
	})
	if err != nil {
		_ = storage.Close()
		_ = tel.Shutdown(ctx)
		_ = log.Sync()
		return nil, err
	}

	return &app{cfg: cfg, logger: log, tel: tel, storage: storage, sessions: sessions}, nil
}

// session opens the configured profile.
func (a *app) session(ctx context.Context) (*storefront.Session, error) {
	return a.sessions.Get(ctx, a.cfg.Profile)
}

func (a *app) Close(ctx context.Context) error {
	err := errors.Join(
		a.sessions.Close(),
		a.storage.Close(),
		a.tel.Shutdown(ctx),
	)
	_ = a.logger.Sync()
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storefront %s (api %s, commit %s, built %s)\n",
				storefront.Version, storefront.APIVersion, storefront.GitCommit, storefront.BuildDate)
		},
	}
}

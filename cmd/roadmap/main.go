package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/h0rv/roadmap/internal/auth"
	"github.com/h0rv/roadmap/internal/config"
	"github.com/h0rv/roadmap/internal/gh"
	"github.com/h0rv/roadmap/internal/logging"
	"github.com/h0rv/roadmap/internal/normalize"
	"github.com/h0rv/roadmap/internal/server"
	"github.com/h0rv/roadmap/internal/store"
	"github.com/h0rv/roadmap/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// CLI flags
	configFlag       string
	logFileFlag      string
	warmFlag         bool
	remoteFlag       string
	refreshTokenFlag string
)

func main() {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:   "roadmap",
		Short: "Roadmap board for a GitHub Projects v2 project",
		Long: `roadmap reads one GitHub Projects v2 board, groups its items into
columns (release versions newest first, or the project's status field) and
serves the result from a 48h cache.

Authentication:
  1. github.token in the config file
  2. Environment variable: ROADMAP_GITHUB_TOKEN or GITHUB_TOKEN
  3. GitHub CLI: Run 'gh auth login'

The token needs the read:project scope.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", "", "Config file (default: ./roadmap.{yaml,toml,json} if present)")
	flags.String("owner", "", "GitHub owner (organization or user login)")
	flags.Int("project", 0, "Project number")
	flags.String("owner-type", "", "Owner type: organization or user")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFileFlag, "log-file", "", "Write logs to this file instead of stderr")

	bindFlag(v, "github.owner", rootCmd, "owner")
	bindFlag(v, "github.project_number", rootCmd, "project")
	bindFlag(v, "github.owner_type", rootCmd, "owner-type")
	bindFlag(v, "log.level", rootCmd, "log-level")

	rootCmd.AddCommand(newServeCmd(v), newFetchCmd(v), newBoardCmd(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("failed to bind flag --%s: %v", name, err))
	}
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP at /roadmap",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(v, true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cache, err := newCache(cfg, logger)
			if err != nil {
				return err
			}
			if warmFlag {
				go func() {
					if _, err := cache.GetBoard(ctx, false); err != nil {
						logger.Warn("cache warm-up failed", zap.Error(err))
					}
				}()
			}

			if !logger.Core().Enabled(zapcore.DebugLevel) {
				gin.SetMode(gin.ReleaseMode)
			}

			handler := &server.Handler{
				Cache:        cache,
				RefreshToken: cfg.Server.RefreshToken,
				Logger:       logger.Named("http"),
				Now:          time.Now,
			}
			srv := server.New(server.NewRouter(handler, logger), server.Options{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			})
			return server.Run(ctx, srv, logger)
		},
	}
	cmd.Flags().BoolVar(&warmFlag, "warm", false, "Fetch the board at startup instead of on the first request")
	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	if err := v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	return cmd
}

func newFetchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the board once and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(v, true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Cache.RefreshTimeout)
			defer cancel()

			data, err := newPipeline(cfg, logger).Load(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
}

func newBoardCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logs would draw over the alt screen; keep them only with --log-file.
			cfg, logger, err := setup(v, logFileFlag != "")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var source tui.BoardSource
			if remoteFlag != "" {
				source = server.NewRemoteSource(remoteFlag, refreshTokenFlag, nil)
			} else {
				cache, err := newCache(cfg, logger)
				if err != nil {
					return err
				}
				source = cache
			}

			p := tea.NewProgram(tui.NewAppModel(source, ctx),
				tea.WithAltScreen(),
				tea.WithMouseCellMotion(),
				tea.WithContext(ctx),
			)
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("program error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&remoteFlag, "remote", "", "Read the board from a running roadmap server (e.g. http://localhost:8080)")
	cmd.Flags().StringVar(&refreshTokenFlag, "refresh-token", "", "Bearer token the remote server requires for forced refreshes")
	return cmd
}

// setup reads configuration and builds the logger. withLogs=false discards logs.
func setup(v *viper.Viper, withLogs bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v, configFlag)
	if err != nil {
		return nil, nil, err
	}

	if !withLogs {
		return cfg, zap.NewNop(), nil
	}

	opts := logging.Options{Level: cfg.Log.Level}
	if logFileFlag != "" {
		opts.OutputPaths = []string{logFileFlag}
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newPipeline(cfg *config.Config, logger *zap.Logger) *normalize.Pipeline {
	// Validate has already accepted the owner type.
	ownerType, _ := gh.ParseOwnerType(cfg.GitHub.OwnerType)

	client := gh.New(
		auth.NewChain(cfg.GitHub.Token, cfg.GitHub.UseGhCli),
		gh.WithEndpoint(cfg.GitHub.Endpoint),
		gh.WithLogger(logger),
	)
	paginator := gh.NewPaginator(client,
		gh.WithOwnerType(ownerType),
		gh.WithPageSize(cfg.GitHub.PageSize),
		gh.WithMaxItems(cfg.GitHub.MaxItems),
		gh.WithPaginatorLogger(logger),
	)
	return normalize.NewPipeline(paginator, cfg.GitHub.Owner, cfg.GitHub.ProjectNumber,
		normalize.WithLogger(logger))
}

func newCache(cfg *config.Config, logger *zap.Logger) (*store.Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return store.NewCache(newPipeline(cfg, logger),
		store.WithTTL(cfg.Cache.TTL),
		store.WithRefreshTimeout(cfg.Cache.RefreshTimeout),
		store.WithRetryBackoff(cfg.Cache.RetryBackoff),
		store.WithLogger(logger),
	), nil
}

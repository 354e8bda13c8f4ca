package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/logging"
	"github.com/BioHazard786/SyncPlayer/internal/mailbox"
	"github.com/BioHazard786/SyncPlayer/internal/server"
	"github.com/BioHazard786/SyncPlayer/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagAddr       string
	flagStore      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling mailbox server",
	Long: `Run the HTTP signaling mailbox that peers use to exchange offers, answers
and ICE candidates.

Examples:
  syncplayer serve
  syncplayer serve --config ./config/server.yaml
  syncplayer serve --addr :9000 --store sqlite`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func loadServerConfig() (*config.Server, error) {
	cfg, err := config.LoadServer(flagConfigPath)
	if err != nil {
		return nil, err
	}
	if flagAddr != "" {
		cfg.HTTP.Addr = flagAddr
	}
	if flagStore != "" {
		cfg.Store.Backend = flagStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	log := logging.Setup(logging.Config{
		Service:          cfg.Logging.Service,
		Version:          version.Version,
		Env:              cfg.Logging.Env,
		Backend:          logging.Backend(cfg.Logging.Backend),
		Level:            logging.ParseLevel(cfg.Logging.Level, slog.LevelInfo),
		AddSource:        cfg.Logging.AddSource,
		SampleInitial:    100,
		SampleThereafter: 100,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := mailbox.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Info("starting signaling mailbox",
		"addr", cfg.HTTP.Addr,
		"store", cfg.Store.Backend,
		"ttl", cfg.Store.Retention().String(),
	)
	return server.New(cfg, store, nil, log).Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagConfigPath, "config", "c", "", "Path to the YAML config (default $CONFIG_PATH or ./config/server.yaml)")
	serveCmd.Flags().StringVarP(&flagAddr, "addr", "a", "", "Listen address, overrides http.addr")
	serveCmd.Flags().StringVar(&flagStore, "store", "", "Mailbox backend: memory, sqlite, redis or postgres")
}

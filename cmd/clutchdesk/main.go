package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Joseda-hg/clutchdesk/internal/app"
	"github.com/Joseda-hg/clutchdesk/internal/config"
	"github.com/Joseda-hg/clutchdesk/internal/logging"
	"github.com/Joseda-hg/clutchdesk/internal/tui"
)

var (
	configPath  string
	verbose     bool
	metricsAddr string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "clutchdesk",
	Short: "Terminal console for the Clutch workshop API",
	Long: `clutchdesk lists and edits employees, appointments, inventory and
recruiting listings held by a Clutch API server.

Run without arguments to open the console. Use "clutchdesk serve" for a local
development backend and "clutchdesk login" to store its tokens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			path, err = config.DefaultConfigPath()
			if err != nil {
				return err
			}
		}

		_, statErr := os.Stat(path)
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if errors.Is(statErr, os.ErrNotExist) {
			if err := config.Save(path, loaded); err != nil {
				return err
			}
		}
		cfg = loaded

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(cfg.LogPath, level)
		if err != nil {
			return errors.Wrap(err, "initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runConsole,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve console metrics at this address while running")

	rootCmd.AddCommand(serveCmd, loginCmd, logoutCmd, listCmd, showCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if metricsAddr != "" {
		addr, stop, err := startMetrics(metricsAddr, a.MetricsHandler())
		if err != nil {
			return err
		}
		defer stop()
		logger.Info("metrics listening", zap.Stringer("addr", addr))
	}

	logger.Info("console starting", zap.String("api", cfg.APIURL))
	return tui.Run(ctx, a.Controllers, logger.Named("tui"))
}

// startMetrics serves handler at /metrics on addr until stop is called.
func startMetrics(addr string, handler http.Handler) (net.Addr, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "listen for metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	return listener.Addr(), stop, nil
}

package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Joseda-hg/clutchdesk/internal/config"
	"github.com/Joseda-hg/clutchdesk/internal/db"
	"github.com/Joseda-hg/clutchdesk/internal/session"
	"github.com/Joseda-hg/clutchdesk/internal/web"
)

var (
	serveAddr   string
	serveDBPath string
	serveSecret string
	serveTTL    time.Duration
	serveLogin  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development API backend",
	Long: `Serves the employee, appointment, inventory and listing collections over
the same envelope API the console talks to, backed by a separate sqlite file.

An access and refresh token pair is printed on start. With --login the pair is
stored in the local session directly.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to serve_addr from config)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "backend sqlite path (defaults to backend.db next to the local db)")
	serveCmd.Flags().StringVar(&serveSecret, "secret", "", "token signing secret (random when empty)")
	serveCmd.Flags().DurationVar(&serveTTL, "token-ttl", time.Hour, "access token lifetime")
	serveCmd.Flags().BoolVar(&serveLogin, "login", false, "store the issued tokens in the local session")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	addr := serveAddr
	if addr == "" {
		addr = cfg.ServeAddr
	}
	path := serveDBPath
	if path == "" {
		path = filepath.Join(filepath.Dir(cfg.DBPath), "backend.db")
	}

	store, closeStore, err := openStore(path)
	if err != nil {
		return err
	}
	defer closeStore()

	secret := []byte(serveSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return errors.Wrap(err, "generate secret")
		}
	}
	auth := web.NewAuth(secret, serveTTL, store)
	pair, err := auth.Issue(ctx)
	if err != nil {
		return err
	}
	if serveLogin {
		if err := storeTokens(ctx, pair.Token, pair.RefreshToken); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           web.NewServer(store, auth, web.Options{Logger: logger.Named("web")}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	cmd.Printf("Development API listening on %s (metrics at /metrics)\n", addr)
	if serveLogin {
		cmd.Println("Tokens stored in the local session.")
	} else {
		cmd.Printf("Sign in with:\n  clutchdesk login --token %s --refresh-token %s\n", pair.Token, pair.RefreshToken)
	}
	logger.Info("backend starting", zap.String("addr", addr), zap.String("db", path))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func openStore(path string) (*db.Store, func(), error) {
	if err := config.EnsureDir(path); err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(sqlDB), func() { _ = sqlDB.Close() }, nil
}

func storeTokens(ctx context.Context, access, refresh string) error {
	store, closeStore, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeStore()
	return session.NewStore(store).SetTokens(ctx, access, refresh)
}

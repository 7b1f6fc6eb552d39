package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adminstyler/adminstyler/internal/config"
	"github.com/adminstyler/adminstyler/internal/cssgen"
	"github.com/adminstyler/adminstyler/internal/logging"
	"github.com/adminstyler/adminstyler/internal/security"
	"github.com/adminstyler/adminstyler/internal/server"
	"github.com/adminstyler/adminstyler/internal/settings"
	"github.com/adminstyler/adminstyler/internal/store"
	"github.com/adminstyler/adminstyler/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the live preview server",
	Long: `Serve the demo admin page, the preview and save endpoints, and the
websocket feed. Settings persist in the configured sqlite store; if a
theme file is configured with watching enabled, edits to it flow
through the same sanitize-save-broadcast pipeline as the admin page.`,
	RunE: runServe,
}

func init() {
	bindServerFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

// bindServerFlags wires serve's flags into viper so flag > env > file
// precedence holds for server settings.
func bindServerFlags(flags *pflag.FlagSet) {
	flags.Int("port", 0, "server port")
	flags.String("host", "", "server host")
	flags.String("theme", "", "theme file to watch for changes")
	viper.BindPFlag("server.port", flags.Lookup("port"))
	viper.BindPFlag("server.host", flags.Lookup("host"))
	viper.BindPFlag("theme.path", flags.Lookup("theme"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Security.Secret == "" {
		// Development convenience only; production config requires a
		// real secret, so tokens here never need to survive a restart.
		cfg.Security.Secret = ulid.Make().String()
		logger.Warn(ctx, nil, "security.secret not set, using an ephemeral one")
	}

	if cfg.Store.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Store.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating store directory: %w", err)
			}
		}
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	nonces := security.NewNonceService(cfg.Security.Secret, cfg.Security.NonceTTL)
	sessions := security.NewSessionService(cfg.Security.Secret, cfg.Security.SessionTTL)
	caps := security.DefaultRoles()
	gate := security.NewGate(nonces, caps, security.CapManageOptions, logger)

	srv := server.New(cfg, server.Dependencies{
		Logger:       logger,
		Store:        st,
		Nonces:       nonces,
		Sessions:     sessions,
		Capabilities: caps,
		Gate:         gate,
	})

	if cfg.Theme.Path != "" && cfg.Theme.Watch {
		if err := watchTheme(ctx, cfg, st, srv, logger); err != nil {
			return err
		}
	}

	return srv.Start(ctx)
}

// watchTheme routes theme file edits through the same pipeline as the
// admin page: sanitize, persist the valid subset, broadcast the
// regenerated stylesheet.
func watchTheme(ctx context.Context, cfg *config.Config, st *store.Store, srv *server.Server, logger logging.Logger) error {
	tw, err := watcher.NewThemeWatcher(cfg.Theme.Path, cfg.Preview.Debounce, logger)
	if err != nil {
		return fmt.Errorf("setting up theme watcher: %w", err)
	}

	tw.AddHandler(func(raw map[string]string) error {
		valid, fieldErrors := settings.SanitizeAll(raw)
		for _, fieldErr := range fieldErrors {
			logger.Warn(ctx, nil, "theme value rejected",
				"key", fieldErr.Key,
				"reason", fieldErr.Reason)
		}

		if err := st.Save(ctx, valid); err != nil {
			return fmt.Errorf("persisting theme settings: %w", err)
		}

		stored, err := st.Load(ctx)
		if err != nil {
			stored = valid
		}
		srv.BroadcastCSS(cssgen.Generate(stored))
		logger.Info(ctx, "theme applied",
			"path", cfg.Theme.Path,
			"saved", len(valid),
			"rejected", len(fieldErrors))
		return nil
	})

	if err := tw.Start(ctx); err != nil {
		return fmt.Errorf("starting theme watcher: %w", err)
	}
	go func() {
		<-ctx.Done()
		tw.Stop()
	}()

	logger.Info(ctx, "watching theme file", "path", cfg.Theme.Path)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dirdrop/internal/config"
	"dirdrop/internal/httpserver"
)

// Version information set at build time.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirdrop [port]",
		Short: "Serve a directory over HTTP with listings and single-file uploads",
		Long: `dirdrop serves a directory tree over HTTP.

GET on a directory renders a listing with an upload form; POST of a
multipart form with a "file" field stores the file in that directory,
renaming it to name-1.ext, name-2.ext, ... when the name is taken.

Examples:
  dirdrop
  dirdrop 9000 --bind 127.0.0.1
  dirdrop --root /srv/share --safe-filenames --metrics`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringP("root", "r", "", "Directory to serve (default: current directory)")
	cmd.Flags().StringP("bind", "b", "", "Address to bind to (default: all interfaces)")
	cmd.Flags().String("charset", "", "Charset for generated pages (default utf-8)")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics at /metrics")
	cmd.Flags().Bool("webdav", false, "Mount the served directory over WebDAV at /dav/")
	cmd.Flags().Bool("safe-filenames", false, "Keep only the base name of uploaded filenames")

	return cmd
}

// resolveConfig layers the config file, then flags that were set, then the
// port argument.
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	var cfg config.Config
	fl := cmd.Flags()

	if path, _ := fl.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if fl.Changed("root") {
		cfg.Root, _ = fl.GetString("root")
	}
	if fl.Changed("bind") {
		cfg.Bind, _ = fl.GetString("bind")
	}
	if fl.Changed("charset") {
		cfg.Charset, _ = fl.GetString("charset")
	}
	if fl.Changed("log-level") {
		cfg.LogLevel, _ = fl.GetString("log-level")
	}
	if fl.Changed("metrics") {
		cfg.Metrics, _ = fl.GetBool("metrics")
	}
	if fl.Changed("webdav") {
		cfg.WebDAV, _ = fl.GetBool("webdav")
	}
	if fl.Changed("safe-filenames") {
		cfg.Filenames = config.FilenamesUnsafe
		if safe, _ := fl.GetBool("safe-filenames"); safe {
			cfg.Filenames = config.FilenamesSafe
		}
	}

	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return cfg, fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Port = port
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	srv, err := httpserver.New(httpserver.Options{Config: cfg, Logger: log})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	hs := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", "http://"+displayAddr(cfg), "root", srv.Root())
		if cfg.WebDAV {
			log.Info("webdav mounted", "path", "/dav/")
		}
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func displayAddr(cfg config.Config) string {
	host := cfg.Bind
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

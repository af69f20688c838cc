// Package main implements the flights server, which collapses chains of
// travel legs into single legs spanning each whole chain.
//
// The server exposes one write operation:
//
//	PUT /api/{db}/{key}
//
// The body is a stream of quoted endpoints, two per leg, ended by one byte
// that is not scanned:
//
//	curl -X PUT localhost:8080/api/db/trip \
//	  --data-binary $'\'SFO\'\'ATL\'\'ATL\'\'GSO\'\n'
//	{"result":[["SFO","GSO"]]}
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│               flights                    │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    PUT /api/{db}/{key} - Consolidate    │
//	│    GET /health         - Store stats    │
//	│    GET /metrics        - Prometheus     │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    api.Server    - Handlers, envelopes  │
//	│    worker.Worker - Single writer        │
//	│    storage.Store - Badger or memory     │
//	└─────────────────────────────────────────┘
//
// Configuration is a JSON document (default cfg-flights.json) listing the
// databases; only the first entry is served:
//
//	{"databases":[{"name":"db","path":"db.kv"}]}
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/flights/internal/api"
	"github.com/dreamware/flights/internal/client"
	"github.com/dreamware/flights/internal/config"
	"github.com/dreamware/flights/internal/logging"
	"github.com/dreamware/flights/internal/storage"
	"github.com/dreamware/flights/internal/worker"
)

const appName = "flights"

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

const (
	defaultBindAddr = "127.0.0.1"
	defaultBindPort = "8080"
	shutdownTimeout = 5 * time.Second
)

type serveOptions struct {
	configPath string
	bindAddr   string
	bindPort   string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &serveOptions{}

	root := &cobra.Command{
		Use:          appName,
		Short:        "Database server that consolidates chains of travel legs",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "JSON (or YAML) configuration file")
	flags.StringVar(&opts.bindAddr, "bind-addr", defaultBindAddr, "Server socket bind address")
	flags.StringVar(&opts.bindPort, "bind-port", defaultBindPort, "Server socket bind port")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "json", "Log format: json or console")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	root.AddCommand(serveCmd, newPutCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}

func newPutCmd() *cobra.Command {
	var server, database, key string

	cmd := &cobra.Command{
		Use:   "put [FILE|-]",
		Short: "Send a raw leg list to a running server and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			body, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			legs, err := client.New(server).PutRaw(ctx, database, key, body)
			if err != nil {
				return err
			}
			for _, leg := range legs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", leg.Origin, leg.Destination)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://"+net.JoinHostPort(defaultBindAddr, defaultBindPort), "Server base URL")
	cmd.Flags().StringVar(&database, "db", config.DefaultDatabaseName, "Database name")
	cmd.Flags().StringVar(&key, "key", "default", "Item key")
	return cmd
}

// runServe loads configuration, binds the listener and serves until ctx is
// cancelled or SIGINT/SIGTERM arrives.
func runServe(ctx context.Context, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := logging.New(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, found, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error("configuration failed", zap.Error(err))
		return err
	}
	if !found {
		logger.Warn("configuration file not found, using defaults", zap.String("path", opts.configPath))
	}

	addr := net.JoinHostPort(opts.bindAddr, opts.bindPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, ln, logger)
}

// serve runs the service on ln until ctx is done, then shuts down gracefully
func serve(ctx context.Context, cfg *config.Config, ln net.Listener, logger *zap.Logger) error {
	db := cfg.Primary()
	store, err := storage.Open(db.Path, logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store close failed", zap.Error(err))
		}
	}()

	w := worker.New(&worker.State{Name: db.Name, Store: store}, cfg.QueueSize, logger)
	w.Start()
	defer w.Stop()

	srv := api.NewServer(w, api.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
		MaxSegments:  cfg.MaxSegments,
		StrictTokens: cfg.StrictTokens,
		Version:      version,
	}, logger)

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			zap.String("addr", ln.Addr().String()),
			zap.String("database", db.Name),
			zap.String("path", db.Path))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err == nil {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

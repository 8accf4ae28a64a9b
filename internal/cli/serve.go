package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corbin-r/net-pipe/internal/config"
	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/metrics"
	"github.com/corbin-r/net-pipe/internal/server"
)

var (
	serveAddr        string
	serveMetricsAddr string
	serveAuditLog    string
	serveNoReload    bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "gRPC listen address (default from config server.addr)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus listen address (default from config server.metrics_addr, \"off\" disables)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file (default from config audit.path)")
	serveCmd.Flags().BoolVar(&serveNoReload, "no-reload", false, "Disable config hot-reload")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC pipe server",
	Long: "Hosts pipe channels over gRPC. Clients open channels, attach drivers,\n" +
		"precheck packets and send them. Channel events feed the audit log and\n" +
		"the Prometheus /metrics endpoint. The config file is hot-reloaded.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.For("serve")
	obs := metrics.New()

	srv, err := server.New(server.Config{
		ConfigPath:   configPath,
		AuditLogPath: serveAuditLog,
		Observer:     obs,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	settings := srv.Settings()
	if logLevel == "" && settings.Log.Level != "" {
		logging.SetLevel(settings.Log.Level)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if !serveNoReload {
		watched := configPath
		if watched == "" {
			watched = config.DefaultPath()
		}
		reloader, err := server.NewReloader(srv, []string{watched})
		if err != nil {
			logger.Warn().Err(err).Msg("hot-reload disabled")
		} else {
			go reloader.Run(ctx)
		}
	}

	metricsAddr := serveMetricsAddr
	if metricsAddr == "" {
		metricsAddr = settings.Server.MetricsAddr
	}
	var httpSrv *http.Server
	if metricsAddr != "" && metricsAddr != "off" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", obs.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "ok %s open=%d\n", srv.ConfigHash(), srv.OpenHandles())
		})
		httpSrv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics listener failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down netpipe server...")
		cancel()
		if httpSrv != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			httpSrv.Shutdown(shutdownCtx)
			done()
		}
		srv.GracefulStop()
	}()

	addr := serveAddr
	if addr == "" {
		addr = settings.Server.Addr
	}
	fmt.Fprintf(os.Stderr, "netpipe server listening on %s\n", addr)
	if httpSrv != nil {
		fmt.Fprintf(os.Stderr, "Metrics: http://%s/metrics\n", metricsAddr)
	}
	fmt.Fprintf(os.Stderr, "Pipe: %s, max outflow %d bytes, %s signatures\n",
		settings.Width(), settings.Pipe.MaxOutflow, settings.Algorithm())
	if cat := settings.Catalog(); cat != nil {
		fmt.Fprintf(os.Stderr, "Drivers: %s\n", strings.Join(cat.Names(), ", "))
	} else {
		fmt.Fprintln(os.Stderr, "Drivers: none cataloged, explicit attach disabled")
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve(addr)
}

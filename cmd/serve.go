package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/analyzer"
	"github.com/sells-group/auction-cli/internal/api"
	"github.com/sells-group/auction-cli/internal/telemetry"
)

var (
	servePort    int
	serveOrigins []string
	serveFilter  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs, analyses and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m, err := telemetry.New()
		if err != nil {
			return err
		}

		opts := []api.Option{api.WithMetrics(m.Handler())}
		if len(serveOrigins) > 0 {
			opts = append(opts, api.WithAllowedOrigins(serveOrigins...))
		}
		if serveFilter {
			opts = append(opts, api.WithFilter(analyzer.DefaultFilter(cfg)))
		}
		handler := api.New(st, analyzer.New(cfg.Alerts), opts...).Routes()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (default any)")
	serveCmd.Flags().BoolVar(&serveFilter, "filter", false, "apply the configured market filter to analyses")
	rootCmd.AddCommand(serveCmd)
}

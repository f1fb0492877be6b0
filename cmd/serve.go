package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only atlas API",
	Long: "Starts an HTTP server over the store: JSON status, summary, and county\n" +
		"endpoints, tract boundaries as GeoJSON, the chart report, and figures\n" +
		"rendered to PNG on demand.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		style, err := loadStyle("")
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Serve.Addr
		}

		api := &apiServer{
			st:       st,
			state:    cfg.State,
			renderer: newRenderer(style, ""),
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           newAPIRouter(api, cfg.Serve.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.String("addr", addr), zap.String("state", cfg.State))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"wardrobe/internal/apihandlers"
	"wardrobe/internal/push"
)

var (
	serveAddr string
	servePort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and WebSocket push server",
	Long: `Starts the HTTP server for uploads, job lookups, and confirmation, plus the
WebSocket endpoint that relays job notifications published by the worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if err := cfg.ValidateServer(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hub := push.NewHub()
		defer hub.Close()
		bridge := push.NewBridge(appInstance.Redis, cfg.Push.ChannelPrefix, hub)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.WithError(err).Error("push bridge stopped")
			}
		}()

		router := gin.New()
		router.Use(gin.Logger(), gin.Recovery())
		api := apihandlers.NewAPIHandler(appInstance.ImageJobService, hub, appInstance)
		api.MaxUploadBytes = cfg.Pipeline.MaxUploadBytes
		api.Register(router)

		srv := &http.Server{Addr: cfg.ListenAddr(), Handler: router}
		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting wardrobe API server on http://%s", cfg.ListenAddr())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to run API server: %w", err)
			}
		case <-ctx.Done():
		}

		log.Info("Shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		log.Info("API server stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
}

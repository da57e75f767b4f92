package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Govind-619/SettleSphere/config"
	"github.com/Govind-619/SettleSphere/controllers"
	"github.com/Govind-619/SettleSphere/gateway"
	"github.com/Govind-619/SettleSphere/notify"
	"github.com/Govind-619/SettleSphere/reconcile"
	"github.com/Govind-619/SettleSphere/routes"
	"github.com/Govind-619/SettleSphere/store"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			if migrate {
				if err := config.Migrate(db); err != nil {
					return err
				}
			}

			gw := gateway.NewClient(cfg.Gateway)
			if !gw.Configured() {
				utils.LogWarn("PayPal credentials missing; deposit actions will be rejected")
			}
			if !gw.VerifiesWebhooks() {
				utils.LogWarn("PAYPAL_WEBHOOK_ID not set; webhook signatures are not verified")
			}

			engine := reconcile.NewEngine(gw, store.New(db), notify.NewDispatcher(db, cfg.Notify), reconcile.Options{
				Provider:      gateway.Provider,
				Currency:      cfg.Gateway.Currency,
				ReturnURL:     cfg.Gateway.ReturnURL,
				CancelURL:     cfg.Gateway.CancelURL,
				ExchangeRate:  cfg.Gateway.ExchangeRate,
				RequireCaller: cfg.JWTSecret != "",
			})
			router := routes.SetupRouter(cfg, controllers.NewWebhookController(engine))

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return run(cmd.Context(), srv)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "Migrate the database before serving")

	return cmd
}

// run serves until the process receives SIGINT or SIGTERM, then drains
// in-flight requests
func run(ctx context.Context, srv *http.Server) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			utils.LogError("Error starting server: %v", err)
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	utils.LogInfo("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

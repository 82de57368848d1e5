package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"github.com/tanawath/sms-payment-gateway/internal/order"
	orderPostgres "github.com/tanawath/sms-payment-gateway/internal/order/postgres"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
	"github.com/tanawath/sms-payment-gateway/internal/transport/rest"
	"github.com/tanawath/sms-payment-gateway/pkg/logger"
)

var siteServerCmd = &cobra.Command{
	Use:   "site",
	Short: "Start the reference destination site",
	Long:  `Start a destination website: pending-order management plus the signed webhook receiver the gateway delivers to`,
	Run: func(cmd *cobra.Command, args []string) {
		startSiteServer()
	},
}

func startSiteServer() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	if config.Site.APIKey == "" || config.Site.SecretKey == "" {
		fmt.Fprintln(os.Stderr, "site.api_key and site.secret_key are required for the site role")
		os.Exit(1)
	}

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orm: %v\n", err)
		os.Exit(1)
	}

	orderService := order.NewService(orderPostgres.NewOrderRepository(gormDB), config.Site.OrderLifetime, log)

	base := transport.NewBaseHandler(log)
	orderHandler := order.NewHandler(base, orderService)
	receiver := order.NewReceiver(base, orderService, config.Site.APIKey, config.Site.SecretKey)

	router := chi.NewRouter()
	rest.RegisterSiteRoutes(router, db.DB, orderHandler, receiver, log)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go orderService.RunExpirySweeper(sweepCtx, config.Site.SweepInterval)

	addr := fmt.Sprintf(":%d", config.Site.Port)
	log.Info("starting site server", "address", addr, "site", config.Site.Name)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
		ReadTimeout:       config.Server.ReadTimeout,
		WriteTimeout:      config.Server.WriteTimeout,
		IdleTimeout:       config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)

		// Refuse webhooks first. The gateway treats the 503 as a miss and
		// keeps working through its chain while we drain.
		orderService.SetAccepting(false)
		cancelSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
		if err := db.Close(); err != nil {
			log.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", "error", err)
			cancelSweep()
			os.Exit(1)
		}
	}

	log.Info("site server stopped")
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/tanawath/sms-payment-gateway/internal"
	"github.com/tanawath/sms-payment-gateway/internal/auth"
	"github.com/tanawath/sms-payment-gateway/internal/bankaccount"
	bankAccountPostgres "github.com/tanawath/sms-payment-gateway/internal/bankaccount/postgres"
	"github.com/tanawath/sms-payment-gateway/internal/classifier"
	"github.com/tanawath/sms-payment-gateway/internal/core/events"
	"github.com/tanawath/sms-payment-gateway/internal/dispatch"
	dispatchPostgres "github.com/tanawath/sms-payment-gateway/internal/dispatch/postgres"
	"github.com/tanawath/sms-payment-gateway/internal/heartbeat"
	"github.com/tanawath/sms-payment-gateway/internal/payment"
	paymentPostgres "github.com/tanawath/sms-payment-gateway/internal/payment/postgres"
	"github.com/tanawath/sms-payment-gateway/internal/sms"
	smsPostgres "github.com/tanawath/sms-payment-gateway/internal/sms/postgres"
	"github.com/tanawath/sms-payment-gateway/internal/transport"
	"github.com/tanawath/sms-payment-gateway/internal/transport/rest"
	"github.com/tanawath/sms-payment-gateway/internal/website"
	websitePostgres "github.com/tanawath/sms-payment-gateway/internal/website/postgres"
	"github.com/tanawath/sms-payment-gateway/pkg/logger"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the gateway HTTP server",
	Long:  `Start the gateway role: SMS ingest, the matching pipeline and the management API`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Dependencies carries everything the gateway server needs at runtime.
type Dependencies struct {
	Config    *internal.Config
	DB        *sqlx.DB
	Router    *chi.Mux
	Heartbeat *heartbeat.Service
	Logger    *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting gateway server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Registration may take several backoff rounds; ingest must not wait
	// on the registrar.
	if deps.Heartbeat != nil {
		go func() {
			if err := deps.Heartbeat.Start(context.Background()); err != nil {
				deps.Logger.Error("registrar connection failed, continuing without sync", "error", err)
			}
		}()
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if deps.Heartbeat != nil {
			deps.Heartbeat.Stop()
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

// gatewayCore is the wired domain layer, shared between the server and the
// redispatch tool.
type gatewayCore struct {
	EventBus     *events.EventBus
	SmsService   *sms.Service
	Payments     *payment.Service
	Websites     *website.Service
	BankAccounts *bankaccount.Service
	DispatchRepo dispatch.RepositoryAPI
	Engine       *dispatch.Engine
}

func buildGatewayCore(cfg *internal.Config, gormDB *gorm.DB, log *slog.Logger) *gatewayCore {
	eventBus := events.NewEventBus(log)

	paymentService := payment.NewService(paymentPostgres.NewPaymentRepository(gormDB), log)
	websiteService := website.NewService(websitePostgres.NewWebsiteRepository(gormDB), log)
	bankAccountService := bankaccount.NewService(bankAccountPostgres.NewBankAccountRepository(gormDB), log)

	cls := classifier.New(cfg.Gateway.ConfidenceThreshold)
	smsService := sms.NewService(smsPostgres.NewSmsRepository(gormDB), cls, paymentService, eventBus, log)

	device := dispatch.DeviceInfo{
		DeviceID:   cfg.Gateway.DeviceID,
		DeviceName: cfg.Gateway.DeviceName,
		AppVersion: cfg.Gateway.AppVersion,
	}
	dispatchRepo := dispatchPostgres.NewDispatchRepository(gormDB)
	engine := dispatch.NewEngine(
		paymentService,
		websiteService,
		bankAccountService,
		dispatchRepo,
		dispatch.NewWebhookClient(log),
		eventBus,
		device,
		log,
	)

	// Every persisted payment event triggers one dispatch pass.
	dispatch.NewEventHandler(engine, log).RegisterEventHandlers(eventBus)

	return &gatewayCore{
		EventBus:     eventBus,
		SmsService:   smsService,
		Payments:     paymentService,
		Websites:     websiteService,
		BankAccounts: bankAccountService,
		DispatchRepo: dispatchRepo,
		Engine:       engine,
	}
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	core := buildGatewayCore(config, gormDB, log)

	var hb *heartbeat.Service
	syncStatus := func() string { return string(heartbeat.StatusDisconnected) }
	if config.Heartbeat.Enabled {
		client := heartbeat.NewRegistrarClient(config.Heartbeat.RegistrarURL, config.Heartbeat.Timeout, log)
		hb = heartbeat.NewService(client, core.Payments, core.EventBus, heartbeat.Config{
			Device: heartbeat.Device{
				ID:      config.Gateway.DeviceID,
				Name:    config.Gateway.DeviceName,
				Version: config.Gateway.AppVersion,
			},
			Interval:      config.Heartbeat.Interval,
			ErrorInterval: config.Heartbeat.ErrorInterval,
		}, log)
		syncStatus = func() string { return string(hb.Status()) }
	}

	base := transport.NewBaseHandler(log)
	authService := auth.NewService(
		config.Security.OperatorUsername,
		config.Security.OperatorPasswordHash,
		config.Security.JWTSecret,
		config.Security.AccessTokenDuration,
	)

	statusHandler := rest.NewGatewayStatusHandler(base, rest.DeviceView{
		DeviceID:   config.Gateway.DeviceID,
		DeviceName: config.Gateway.DeviceName,
		AppVersion: config.Gateway.AppVersion,
	}, syncStatus, core.BankAccounts)

	readiness := func(ctx context.Context) (bool, string) {
		status, err := core.BankAccounts.Status()
		if err != nil {
			return false, err.Error()
		}
		return status.IsReady, status.NotReadyMessage
	}

	router := chi.NewRouter()
	rest.RegisterGatewayRoutes(router, db.DB, readiness,
		auth.NewHandler(authService),
		sms.NewHandler(base, core.SmsService),
		payment.NewHandler(base, core.Payments),
		website.NewHandler(base, core.Websites),
		bankaccount.NewHandler(base, core.BankAccounts),
		dispatch.NewHandler(base, core.Engine),
		statusHandler,
		config.Security.DeviceKey,
		log,
	)

	return &Dependencies{
		Config:    config,
		Logger:    log,
		DB:        db,
		Router:    router,
		Heartbeat: hb,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return dbConn, nil
}

// initGorm layers the ORM over the already-open pool, so both query paths
// share one set of connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
}

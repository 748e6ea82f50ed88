package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtycrm/pkg/agents/analytics"
	"realtycrm/pkg/agents/lead"
	"realtycrm/pkg/agents/scheduling"
	"realtycrm/pkg/agents/transaction"
	"realtycrm/pkg/calendar"
	"realtycrm/pkg/config"
	"realtycrm/pkg/dispatch"
	"realtycrm/pkg/esign"
	"realtycrm/pkg/eventlog"
	"realtycrm/pkg/identity"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/mailer"
	"realtycrm/pkg/metrics"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/reporting"
	"realtycrm/pkg/version"
	"realtycrm/pkg/webapi"
)

const shutdownGrace = 15 * time.Second

// App wires the CRM together: storage, agents, controller, and the REST
// server.
type App struct {
	cfg        *config.Config
	controller *dispatch.Controller
	eventLog   *eventlog.Writer
	httpServer *http.Server
	logger     *logx.Logger
}

func main() {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("realtycrm %s (%s, built %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	if configPath == "" {
		configPath = os.Getenv("CRM_CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	app.logger.Info("received %s, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := app.Stop(shutdownCtx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
}

// NewApp builds every component from config.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logx.NewLogger("app")

	db, err := persistence.InitializeDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	store := persistence.NewStore(db)

	var eventLog *eventlog.Writer
	if !cfg.EventLog.Disabled {
		eventLog, err = eventlog.NewWriter(cfg.EventLog.Dir)
		if err != nil {
			return nil, fmt.Errorf("event log init: %w", err)
		}
	}

	recorder := metrics.NewRecorder()
	send := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	calendarClient := calendar.NewClient(cfg.Calendar.BaseURL, cfg.Calendar.CalendarID, cfg.Calendar.APIKey)
	esignClient := esign.NewClient(cfg.ESign.BaseURL, cfg.ESign.AccountID, cfg.ESign.APIKey)

	controller := dispatch.NewController(cfg.Queue.Size, recorder, eventLog)
	controller.Attach(analytics.New(reporting.NewService(store), send))
	controller.Attach(scheduling.New(calendarClient, send))
	controller.Attach(transaction.New(store, esignClient, send))
	controller.Attach(lead.New(store, send))

	identitySvc := identity.NewService(store, cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
	api := webapi.NewServer(store, identitySvc, controller, recorder)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	return &App{
		cfg:        cfg,
		controller: controller,
		eventLog:   eventLog,
		logger:     logger,
		httpServer: &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      http.TimeoutHandler(mux, cfg.Server.RequestTimeout, "request timed out"),
			ReadTimeout:  cfg.Server.RequestTimeout,
			WriteTimeout: 2 * cfg.Server.RequestTimeout,
		},
	}, nil
}

// Start launches the controller worker and the HTTP listener.
func (a *App) Start(ctx context.Context) {
	a.controller.Start(ctx)
	a.logger.Info("realtycrm %s listening on %s", version.Version, a.cfg.Server.ListenAddr)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("http server: %v", err)
		}
	}()
}

// Stop shuts down the HTTP server, the controller, and the event log.
func (a *App) Stop(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.controller.Stop(ctx); err != nil {
		return err
	}
	if a.eventLog != nil {
		if err := a.eventLog.Close(); err != nil {
			a.logger.Warn("event log close: %v", err)
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}

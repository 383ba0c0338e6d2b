package app

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lnkday/automation-service/internal/clients"
	"github.com/lnkday/automation-service/internal/config"
	"github.com/lnkday/automation-service/internal/controllers"
	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/engine"
	"github.com/lnkday/automation-service/internal/events"
	"github.com/lnkday/automation-service/internal/migrations"
	"github.com/lnkday/automation-service/internal/repository"
	"github.com/lnkday/automation-service/internal/scheduler"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Start boots the automation service: database, migrations, scheduler, event
// consumer and HTTP server. Blocks until the HTTP server stops.
func Start(ctx context.Context, mux *http.ServeMux) error {
	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE {
		panic("LNKAUTO_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
	}

	var db *sql.DB
	switch databaseType {
	case config.DATABASE_TYPE_POSTGRES:
		db = setupPostgresDatabase()
	case config.DATABASE_TYPE_MYSQL:
		db = setupMysqlDatabase()
	case config.DATABASE_TYPE_SQLLITE:
		db = setupSqlLiteDatabase()
	}
	defer db.Close()

	clock := core.NewRealClock()
	definitionRepo := repository.NewWorkflowDefinitionRepository(db, clock)
	logRepo := repository.NewExecutionLogRepository(db, clock)
	userRepo := repository.NewUserRepository(db, clock)

	notifier := clients.NewNotificationClient(config.GetSystemSettingString(config.NOTIFICATION_SERVICE_URL))
	linkClient := clients.NewLinkServiceClient(config.GetSystemSettingString(config.LINK_SERVICE_URL))
	teamClient := clients.NewTeamServiceClient(config.GetSystemSettingString(config.TEAM_SERVICE_URL))
	analyticsClient := clients.NewAnalyticsClient(config.GetSystemSettingString(config.ANALYTICS_SERVICE_URL))
	webhookClient := clients.NewWebhookClient()

	executor := engine.NewActionExecutor(notifier, linkClient, teamClient, webhookClient, analyticsClient, clock)
	orchestrator := engine.NewOrchestrator(definitionRepo, logRepo, executor, clock)

	sched := scheduler.NewScheduler(orchestrator, definitionRepo, clock)
	reconcileInterval, err := time.ParseDuration(config.GetSystemSettingString(config.SCHEDULER_RECONCILE_INTERVAL))
	if err != nil {
		reconcileInterval = time.Minute
	}
	sched.Start(ctx, reconcileInterval)

	if rabbitURL := config.GetSystemSettingString(config.RABBITMQ_URL); rabbitURL != "" {
		listener := events.NewListener(
			rabbitURL,
			config.GetSystemSettingString(config.EVENTS_QUEUE),
			config.GetSystemSettingInteger(config.EVENTS_PREFETCH),
			orchestrator,
			definitionRepo,
		)
		go listener.Start(ctx)
	} else {
		slog.Warn("LNKAUTO_RABBITMQ_URL not set, event-triggered workflows will not fire")
	}

	if mux == nil {
		mux = http.NewServeMux()
	}
	authController := controllers.NewAuthController(userRepo, clock)
	authController.RegisterRoutes(mux)
	workflowsController := controllers.NewWorkflowsController(definitionRepo, orchestrator, sched, userRepo, clock)
	workflowsController.RegisterRoutes(mux)
	logsController := controllers.NewLogsController(logRepo, userRepo, clock)
	logsController.RegisterRoutes(mux)
	statsController := controllers.NewStatsController(definitionRepo, logRepo, sched, userRepo, clock)
	statsController.RegisterRoutes(mux)
	hooksController := controllers.NewHooksController(definitionRepo, orchestrator)
	hooksController.RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("LNKAUTO_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database")
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return db
}

func setupSqlLiteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		panic("LNKAUTO_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqllite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	db, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return db
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("LNKAUTO_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("LNKAUTO_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("LNKAUTO_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database")
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	db, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return db
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}

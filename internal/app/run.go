package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vatsalyanallabothula/weather/internal/config"
	"github.com/vatsalyanallabothula/weather/internal/db"
	"github.com/vatsalyanallabothula/weather/internal/db/migrate"
	"github.com/vatsalyanallabothula/weather/internal/httpapi"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/service"
	weatherviews "github.com/vatsalyanallabothula/weather/internal/modules/weather/views"
	"github.com/vatsalyanallabothula/weather/internal/mqtt"
)

const (
	mqttConnectTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Run serves until ctx is canceled or the listener fails.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return Serve(ctx, cfg, logger, ln)
}

// Serve is Run on an existing listener; it takes ownership of ln.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger, ln net.Listener) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", ln.Addr().String(),
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"openWeatherBaseURL", cfg.OpenWeatherBaseURL,
		"openWeatherTimeout", cfg.OpenWeatherTimeout,
		"sessionTTL", cfg.SessionTTL,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, dbConn); err != nil {
		_ = ln.Close()
		return err
	}
	logger.Info("database ready")

	if err := weatherviews.LoadTemplates(); err != nil {
		_ = ln.Close()
		return err
	}

	var publisher service.Publisher
	if cfg.MQTTEnabled() {
		mqttPublisher := mqtt.NewPublisher(cfg, logger)
		defer mqttPublisher.Disconnect()

		// A dead broker must not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err = mqttPublisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		} else {
			publisher = service.NewMQTTPublisher(mqttPublisher, cfg.MQTTTopicPrefix)
		}
	}

	svc := weather.NewService(dbConn, cfg, publisher, logger)

	mux := httpapi.NewMux(dbConn)
	weather.RegisterFeature(mux, svc)
	srv := httpapi.NewServer(cfg, mux, logger)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		svc.RunJanitor(janitorCtx, cfg.SessionPurgeInterval)
	}()
	defer func() {
		stopJanitor()
		<-janitorDone
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qrave1/RoomCall/internal/application/config"
	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/application/metric"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
	"github.com/qrave1/RoomCall/internal/infra/adapters/postgres"
	"github.com/qrave1/RoomCall/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/RoomCall/internal/infra/ports/http/handlers"
	"github.com/qrave1/RoomCall/internal/infra/ports/http/server"
	"github.com/qrave1/RoomCall/internal/infra/ports/turn"
	"github.com/qrave1/RoomCall/internal/usecase"
)

// runApp не завершает процесс сам: os.Exit вызывается только в Execute
func runApp() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	slog.Info("Running app", slog.Bool("debug", cfg.Debug), slog.Bool("journal", cfg.Postgres.Enabled()))

	journal := usecase.NewNoopJournal()

	if cfg.Postgres.Enabled() {
		dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer dbConn.Close()

		journal = usecase.NewJournalUsecase(repository.NewJournalRepo(dbConn), cfg.JournalBuffer)
	}

	if cfg.Turn.Enabled() {
		turnSrv, err := turn.NewServer(cfg.Turn, cfg.CoturnServer.Secret)
		if err != nil {
			return fmt.Errorf("start turn server: %w", err)
		}
		defer turnSrv.Close()
	}

	journalDone := make(chan struct{})
	go func() {
		defer close(journalDone)
		journal.Run(ctx)
	}()

	directory := memory.NewRoomDirectory()
	wsConnRepo := memory.NewWSConnectionRepository(cfg.WS.SendQueue, cfg.WS.PingInterval)

	presenceUsecase := usecase.NewPresenceUsecase(cfg.DefaultName, directory, wsConnRepo, journal)
	relayUsecase := usecase.NewRelayUsecase(directory, wsConnRepo)
	collaborationUsecase := usecase.NewCollaborationUsecase(directory, wsConnRepo, time.Now)

	roomHandler := handlers.NewRoomHandler(directory, journal)
	iceHandler := handlers.NewIceHandler(cfg)
	wsHandler := handlers.NewWebSocketHandler(cfg, wsConnRepo, presenceUsecase, relayUsecase, collaborationUsecase)

	echoSrv := server.New(cfg, roomHandler, iceHandler, wsHandler)
	metricSrv := metric.NewServer(directory.Stats)

	srvCh := make(chan error, 2)
	go func() {
		srvCh <- echoSrv.Start(":" + cfg.Port)
	}()
	go func() {
		srvCh <- metricSrv.Start(":" + cfg.MetricPort)
	}()

	var srvErr error

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server due to context cancel")
	case err := <-srvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any(constant.Error, err))
			srvErr = fmt.Errorf("serve http: %w", err)
		}

		cancel()
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown server", slog.Any(constant.Error, err))
	}

	if err := metricSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to shutdown metric server", slog.Any(constant.Error, err))
	}

	// Журнал дописывает буфер после отмены ctx
	<-journalDone

	return srvErr
}

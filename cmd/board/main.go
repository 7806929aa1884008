package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/sujalbistaa/blurtbox/internal/api"
	"github.com/sujalbistaa/blurtbox/internal/board"
	"github.com/sujalbistaa/blurtbox/internal/config"
	"github.com/sujalbistaa/blurtbox/internal/db"
	routes "github.com/sujalbistaa/blurtbox/internal/http"
	"github.com/sujalbistaa/blurtbox/internal/ids"
	"github.com/sujalbistaa/blurtbox/internal/ledger"
	"github.com/sujalbistaa/blurtbox/internal/logger"
	"github.com/sujalbistaa/blurtbox/internal/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("board exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Setup(cfg.Env)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := ids.Init(cfg.NodeID); err != nil {
		return err
	}

	database, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	votes := ledger.New(ledger.NewGormStore(database))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	attempts := cfg.ReconnectAttempts
	if attempts == 0 {
		attempts = -1 // disabled
	}
	conn, err := ws.Dial(ctx, ws.Config{URL: cfg.ServerURL, ReconnectAttempts: attempts})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := api.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	session := board.New(conn, client, votes, board.Options{
		PageSize:       cfg.PageSize,
		Cooldown:       cfg.VoteCooldown,
		ToastDuration:  cfg.ToastDuration,
		PendingTimeout: cfg.PendingTimeout,
		MirrorComments: cfg.MirrorComments,
	})
	sessionDone := make(chan error, 1)
	go func() { sessionDone <- session.Run(ctx, conn) }()

	router := gin.New()
	routes.SetupRoutes(ctx, router, &routes.Env{Board: session}, routes.RouteOptions{
		CORSOrigin: cfg.CORSOrigin,
		BoardToken: cfg.BoardToken,
		Metrics:    true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("view server listening", "port", cfg.Port, "backend", cfg.ServerURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stop()
		return err
	}
	slog.Info("shutting down view server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-sessionDone
	slog.Info("board exiting")
	return nil
}

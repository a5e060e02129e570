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

	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/calltracker"
	"callcenter-backend/internal/config"
	"callcenter-backend/internal/httpapi"
	"callcenter-backend/internal/jobs"
	"callcenter-backend/internal/messages"
	"callcenter-backend/internal/notify"
	"callcenter-backend/internal/telephony"
	"callcenter-backend/internal/users"
	"callcenter-backend/pkg/logger"
	"callcenter-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var store calltracker.Store = calltracker.NewMemoryStore()
	if cfg.UsesRedis() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = calltracker.NewRedisStore(rdb, cfg.Calls.SessionMaxAge)
	}

	userSvc := users.NewService(users.NewPostgresRepo(db), authManager)
	msgSvc := messages.NewService(messages.NewPostgresRepo(db))
	hub := notify.NewHub(log)
	tracker := calltracker.New(store, userSvc, hub, log)
	gateway := telephony.NewTwilioGateway(cfg.Twilio)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Cfg:      cfg,
		Users:    userSvc,
		Messages: msgSvc,
		Tracker:  tracker,
		Gateway:  gateway,
		Hub:      hub,
		DB:       db,
	}
	registerRoutes(r, h, authManager, cfg)

	sweeper := jobs.NewSweeper(tracker, cfg.Calls.SessionMaxAge, cfg.Calls.SweepInterval, log)
	go sweeper.Run(rootCtx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

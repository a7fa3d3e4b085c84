package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmanager/internal/config"
	httpServer "taskmanager/internal/http"
	"taskmanager/internal/http/middleware"
	"taskmanager/internal/logger"
	"taskmanager/internal/service"
	"taskmanager/internal/storage"
	"taskmanager/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx := context.Background()

	tokens, err := service.NewTokenCodec([]byte(cfg.JWTSecret))
	if err != nil {
		logger.Fatal("invalid jwt secret", "error", err)
	}
	mode, err := service.ParseCredentialMode(cfg.CredentialMode)
	if err != nil {
		logger.Fatal("invalid credential mode", "error", err)
	}

	st, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open storage", "driver", cfg.StorageDriver, "error", err)
	}
	defer st.Close()

	if cfg.SeedDemoUsers {
		if _, err := service.ProvisionUsers(ctx, st.Tx, st.Provisioner, mode, service.DemoUsers()); err != nil {
			logger.Fatal("failed to provision demo users", "error", err)
		}
	}

	hub := ws.NewHub()
	defer hub.Close()

	tasks := service.NewTaskService(st.Tx, st.Tasks, st.Users)
	tasks.SetPublisher(hub)
	auth := service.NewAuthService(st.Users, tokens, mode)

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer middleware.CloseRedis()

	gin.SetMode(gin.ReleaseMode)
	r := httpServer.NewRouter(httpServer.Deps{
		Config:  cfg,
		Auth:    auth,
		Tasks:   tasks,
		Tokens:  tokens,
		Hub:     hub,
		Storage: st,
		Driver:  st.Driver,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "storage", st.Driver, "version", cfg.AppVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

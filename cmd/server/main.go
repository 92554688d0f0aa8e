package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/app"
	"github.com/ansyar-project/split-the-bill/internal/config"
	"github.com/ansyar-project/split-the-bill/internal/handlers"
	"github.com/ansyar-project/split-the-bill/internal/middleware"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const purgeInterval = time.Hour

func main() {
	logger.Init()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	go purgeExpiredInvites(ctx, a)

	server := fiber.New(fiber.Config{BodyLimit: 1 * 1024 * 1024})
	server.Use(recover.New(recover.Config{EnableStackTrace: true}))
	server.Use(middleware.CORS(cfg.Server.CORSOrigins))
	server.Use(a.Metrics.Middleware())
	server.Use(middleware.RequestLogger())
	server.Use(middleware.SecurityLogger())

	server.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := a.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	server.Get("/metrics", a.Metrics.Handler())

	handlers.RegisterRoutes(server, a.Services, middleware.NewAuthMiddleware(a.DB))

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":        cfg.Server.Port,
		"address":     listenAddr,
		"db_driver":   cfg.DB.Driver,
		"amqp":        cfg.AMQP.URL != "",
		"minio":       cfg.MinIO.Enabled,
		"invite_ttl":  cfg.Invite.TTL.String(),
		"cors_origin": cfg.Server.CORSOrigins,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = server.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Printf("server error: %v", err)
		}
	}
}

// purgeExpiredInvites deletes stale invite links until ctx is cancelled.
func purgeExpiredInvites(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Services.Invites.PurgeExpired(ctx); err != nil {
				logger.Error("invite_purge_failed", err, nil)
			}
		}
	}
}

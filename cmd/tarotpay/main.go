package main

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/busbuskimki/tarotpay/app/controllers"
	"github.com/busbuskimki/tarotpay/internal/pkg/cache"
	"github.com/busbuskimki/tarotpay/internal/pkg/config"
	"github.com/busbuskimki/tarotpay/internal/pkg/credits"
	"github.com/busbuskimki/tarotpay/internal/pkg/database"
	"github.com/busbuskimki/tarotpay/internal/pkg/env"
	"github.com/busbuskimki/tarotpay/internal/pkg/mail"
	"github.com/busbuskimki/tarotpay/internal/pkg/router"
	"github.com/busbuskimki/tarotpay/internal/pkg/security"
)

func main() {
	cfg, app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port))
	logrus.Fatal(err)
}

func NewApplication() (*config.Config, *fiber.App) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	cfg, err := config.New()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	allowlist, err := security.NewIPAllowlist(cfg.Webhook.AllowedIPs)
	if err != nil {
		logrus.Fatalf("invalid IP allowlist: %v", err)
	}

	// Counters live in Redis so the limit holds across replicas; the memory
	// limiter is the single-process fallback.
	var limiter security.RateLimiter
	if env.GetEnv("CACHE_HOST", "") != "" {
		limiter = security.NewRedisRateLimiter(cache.GetClient(), cfg.Webhook.RateLimitMax, cfg.Webhook.RateLimitWindow)
	} else {
		limiter = security.NewMemoryRateLimiter(cfg.Webhook.RateLimitMax, cfg.Webhook.RateLimitWindow)
	}

	gate := security.NewGate(allowlist, limiter, cfg.Webhook.Secret, cfg.Webhook.TestMode, log)
	notifier := mail.NewPaymentNotifier(cfg.Webhook.AdminEmail, log)
	service := credits.NewServiceFromDB(database.GetDB(), notifier, log)
	webhook := controllers.NewWebhookController(gate, service, cfg.Webhook.SlowThreshold, log)

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // webhook payloads are small JSON documents
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fixed security headers on every response
	app.Use(helmet.New(helmet.Config{
		XFrameOptions: "DENY",
		HSTSMaxAge:    31536000,
	}))

	// ROUTER
	router.InstallRouter(app, webhook)

	return cfg, app
}

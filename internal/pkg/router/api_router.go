package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/busbuskimki/tarotpay/app/controllers"
)

type ApiRouter struct {
	webhook *controllers.WebhookController
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")

	// The webhook endpoint carries its own rate limiter inside the security
	// gate, keyed by client IP with provider-facing metadata on rejection.
	api.Post("/webhook/shopier", h.webhook.HandleShopierWebhook)
}

func NewApiRouter(webhook *controllers.WebhookController) *ApiRouter {
	return &ApiRouter{webhook: webhook}
}

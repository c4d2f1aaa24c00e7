package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/busbuskimki/tarotpay/internal/pkg/credits"
	"github.com/busbuskimki/tarotpay/internal/pkg/security"
	"github.com/busbuskimki/tarotpay/internal/pkg/shopier"
)

const webhookTimeout = 15 * time.Second

// WebhookController is the HTTP entry point for Shopier payment webhooks. It
// orchestrates the security gate and the credits service and maps every
// outcome onto the status codes the provider contract defines. Internal
// detail never leaks into responses; it goes to the log instead.
type WebhookController struct {
	gate          *security.Gate
	service       *credits.Service
	slowThreshold time.Duration
	log           *logrus.Logger
}

func NewWebhookController(gate *security.Gate, service *credits.Service, slowThreshold time.Duration, log *logrus.Logger) *WebhookController {
	return &WebhookController{
		gate:          gate,
		service:       service,
		slowThreshold: slowThreshold,
		log:           log,
	}
}

func (wc *WebhookController) HandleShopierWebhook(c *fiber.Ctx) error {
	start := time.Now()
	deliveryID := uuid.NewString()
	rawBody := append([]byte(nil), c.BodyRaw()...)

	meta := security.RequestMeta{
		RemoteAddr:   c.IP(),
		ForwardedFor: c.Get("X-Forwarded-For"),
		RealIP:       c.Get("X-Real-IP"),
		Signature:    c.Get(shopier.SignatureHeader),
		ReceivedAt:   start,
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	notification, err := wc.gate.Check(ctx, rawBody, meta)
	if err != nil {
		return wc.renderError(c, start, deliveryID, err)
	}

	receipt, err := wc.service.ProcessPayment(ctx, notification)
	if err != nil {
		return wc.renderError(c, start, deliveryID, err)
	}

	elapsed := wc.finish(c, start, deliveryID)

	var message string
	switch receipt.Outcome {
	case credits.OutcomeDuplicate:
		message = "Payment already processed"
	case credits.OutcomeIgnored:
		message = "Payment not successful"
	default:
		message = "Payment processed successfully"
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":            message,
		"order_ref":          receipt.OrderRef,
		"credits_granted":    receipt.CreditsGranted,
		"processing_time_ms": elapsed.Milliseconds(),
	})
}

func (wc *WebhookController) renderError(c *fiber.Ctx, start time.Time, deliveryID string, err error) error {
	elapsed := wc.finish(c, start, deliveryID)

	entry := wc.log.WithFields(logrus.Fields{
		"delivery_id": deliveryID,
		"elapsed_ms":  elapsed.Milliseconds(),
	})

	var rejection *security.RejectionError
	if errors.As(err, &rejection) {
		entry.WithField("stage", string(rejection.Stage)).Warn(rejection.Detail)
		switch rejection.Stage {
		case security.StageSignature:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		case security.StageRateLimit:
			if rl := rejection.RateLimit; rl != nil {
				c.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
				c.Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
				c.Set("Retry-After", strconv.FormatInt(int64(time.Until(rl.ResetAt).Seconds())+1, 10))
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "rate_limited"})
		default:
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
	}

	var validation *shopier.ValidationError
	if errors.As(err, &validation) {
		entry.WithField("violations", len(validation.Fields)).Warn("webhook payload failed validation")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_payload",
			"details": validation.Fields,
		})
	}

	switch {
	case errors.Is(err, credits.ErrOrderResolution):
		entry.Warn(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_reference"})
	case errors.Is(err, credits.ErrPackageNotFound):
		entry.Warn(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_package"})
	case errors.Is(err, credits.ErrAccountNotFound):
		entry.Warn(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_account"})
	}

	// Nothing was granted on this path, so a 500 is safe for the provider to
	// retry.
	entry.WithError(err).Error("webhook processing failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
}

// finish stamps the processing-time header and logs a performance warning for
// deliveries that ran over the configured threshold.
func (wc *WebhookController) finish(c *fiber.Ctx, start time.Time, deliveryID string) time.Duration {
	elapsed := time.Since(start)
	c.Set("X-Processing-Time-Ms", strconv.FormatInt(elapsed.Milliseconds(), 10))
	if wc.slowThreshold > 0 && elapsed > wc.slowThreshold {
		wc.log.WithFields(logrus.Fields{
			"delivery_id": deliveryID,
			"elapsed_ms":  elapsed.Milliseconds(),
		}).Warn("webhook processing exceeded threshold")
	}
	return elapsed
}

package security

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/busbuskimki/tarotpay/internal/pkg/shopier"
)

// Stage names the gate stage that rejected a delivery.
type Stage string

const (
	StageIPAllowlist Stage = "ip_allowlist"
	StageRateLimit   Stage = "rate_limit"
	StageSignature   Stage = "signature"
)

// RejectionError is returned when a transport-level security stage fails.
// Schema violations are reported separately as *shopier.ValidationError.
type RejectionError struct {
	Stage     Stage
	Detail    string
	RateLimit *RateLimitResult
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("security rejection at %s: %s", e.Stage, e.Detail)
}

// RequestMeta carries the transport facts the gate needs about one delivery.
type RequestMeta struct {
	RemoteAddr   string
	ForwardedFor string
	RealIP       string
	Signature    string
	ReceivedAt   time.Time
}

// Gate authenticates the transport for webhook deliveries. It runs an ordered
// pipeline: IP allowlist, rate limiter, schema validation, signature
// verification. The first failing stage short-circuits. Only the rate
// limiter's counters are mutated.
type Gate struct {
	allowlist *IPAllowlist
	limiter   RateLimiter
	secret    string
	testMode  bool
	log       *logrus.Logger
}

func NewGate(allowlist *IPAllowlist, limiter RateLimiter, secret string, testMode bool, log *logrus.Logger) *Gate {
	return &Gate{
		allowlist: allowlist,
		limiter:   limiter,
		secret:    secret,
		testMode:  testMode,
		log:       log,
	}
}

// Check runs the gate over one delivery and returns the validated
// notification. Sandbox deliveries (TEST_ order refs, or global test mode)
// skip the allowlist and signature stages but still count against the rate
// limit.
func (g *Gate) Check(ctx context.Context, body []byte, meta RequestMeta) (*shopier.PaymentNotification, error) {
	sandbox := g.testMode || shopier.IsSandboxOrderRef(sniffOrderRef(body))
	ip := ClientIP(meta.ForwardedFor, meta.RealIP, meta.RemoteAddr)

	if !sandbox {
		if ip == "" {
			return nil, &RejectionError{Stage: StageIPAllowlist, Detail: "could not determine client IP"}
		}
		if !g.allowlist.Contains(ip) {
			return nil, &RejectionError{Stage: StageIPAllowlist, Detail: "IP not allowlisted: " + ip}
		}
	}

	limitKey := ip
	if limitKey == "" {
		limitKey = "unknown"
	}
	res, err := g.limiter.Allow(ctx, limitKey)
	if err != nil {
		// A broken counter store must not take payment ingestion down.
		g.log.WithError(err).Warn("rate limiter unavailable, letting delivery through")
	} else if !res.Allowed {
		return nil, &RejectionError{
			Stage:     StageRateLimit,
			Detail:    "rate limit exceeded for " + limitKey,
			RateLimit: &res,
		}
	}

	n, err := shopier.Normalize(body, meta.ReceivedAt)
	if err != nil {
		return nil, err
	}

	if !sandbox && !n.Sandbox() {
		if !shopier.VerifySignature(n, meta.Signature, g.secret) {
			return nil, &RejectionError{Stage: StageSignature, Detail: "signature verification failed"}
		}
	}
	return n, nil
}

// sniffOrderRef peeks at the raw body for the order reference so the sandbox
// decision can be made before full validation. Parse failures surface later
// in the schema stage.
func sniffOrderRef(body []byte) string {
	var peek struct {
		PlatformOrderID string `json:"platform_order_id"`
		OrderID         string `json:"orderId"`
	}
	_ = json.Unmarshal(body, &peek)
	if peek.PlatformOrderID != "" {
		return peek.PlatformOrderID
	}
	return peek.OrderID
}

package shopier

import (
	"fmt"
	"strings"
)

// Status is the normalized payment status reported by Shopier.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusOther   Status = "other"
)

// PaymentNotification is the validated, normalized form of a Shopier webhook
// payload. It is constructible only through Normalize; handlers never touch
// the raw wire fields.
type PaymentNotification struct {
	OrderRef              string  `json:"order_ref" validate:"required"`
	Status                Status  `json:"status" validate:"required,oneof=success failed other"`
	RawStatus             string  `json:"raw_status"`
	Amount                float64 `json:"amount" validate:"required,gt=0"`
	Currency              string  `json:"currency" validate:"required,len=3"`
	ProviderTransactionID string  `json:"transaction_id" validate:"required"`
	Timestamp             string  `json:"timestamp" validate:"required"`
	PackageID             string  `json:"package_id,omitempty"`
	UserID                string  `json:"user_id,omitempty"`
}

// Sandbox reports whether the notification belongs to a test order. Sandbox
// deliveries take the documented reduced-security path.
func (n *PaymentNotification) Sandbox() bool {
	return IsSandboxOrderRef(n.OrderRef)
}

// IsSandboxOrderRef reports whether an order reference marks a test order.
func IsSandboxOrderRef(orderRef string) bool {
	return strings.HasPrefix(orderRef, "TEST_")
}

// FieldViolation describes one schema validation failure.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every violation found in a payload, not just the
// first one, so integration errors can be fixed in one round trip.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return "invalid webhook payload: " + strings.Join(parts, "; ")
}

// StatusText maps a raw provider status to the Turkish wording used in the
// admin notification mails.
func StatusText(rawStatus string) string {
	switch strings.ToLower(strings.TrimSpace(rawStatus)) {
	case "success", "succeeded", "paid":
		return "Başarılı"
	case "failed", "failure":
		return "Başarısız"
	case "cancelled", "canceled":
		return "İptal Edildi"
	case "pending":
		return "Beklemede"
	case "expired":
		return "Süresi Doldu"
	case "refunded":
		return "İade Edildi"
	default:
		return rawStatus
	}
}

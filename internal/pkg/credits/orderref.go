package credits

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// The canonical order reference encoding is ORDER_<unix-millis>_<userID>,
// with TEST_ in place of ORDER_ for sandbox orders. The user ID is everything
// after the second underscore, so UUIDs with hyphens pass through untouched.
// Package IDs never ride in the reference; they arrive as the payload's
// package_id field.
var orderRefPattern = regexp.MustCompile(`^(ORDER|TEST)_(\d+)_(.+)$`)

// NewOrderRef builds a canonical order reference for a user. It lives here so
// the checkout flow and the webhook resolver can never drift apart.
func NewOrderRef(userID string, at time.Time, sandbox bool) string {
	prefix := "ORDER"
	if sandbox {
		prefix = "TEST"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, at.UnixMilli(), userID)
}

// ParseOrderRef decodes a canonical order reference into the user ID it was
// issued for. Any non-matching input fails closed with ErrOrderResolution.
func ParseOrderRef(orderRef string) (string, error) {
	ref := strings.TrimSpace(orderRef)
	m := orderRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", fmt.Errorf("%w: %q does not match ORDER_<ts>_<userID>", ErrOrderResolution, ref)
	}
	userID := strings.TrimSpace(m[3])
	if userID == "" {
		return "", fmt.Errorf("%w: %q has an empty user id", ErrOrderResolution, ref)
	}
	return userID, nil
}

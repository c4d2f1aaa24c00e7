package shopier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SignatureHeader is the HTTP header carrying the Shopier webhook signature.
const SignatureHeader = "X-Shopier-Signature"

// SignatureBase builds the canonical string Shopier signs: the six signed
// fields as key=value pairs, sorted by key, joined with '&'.
func SignatureBase(n *PaymentNotification) string {
	pairs := map[string]string{
		"order_id":       n.OrderRef,
		"status":         n.RawStatus,
		"amount":         strconv.FormatFloat(n.Amount, 'f', -1, 64),
		"currency":       n.Currency,
		"transaction_id": n.ProviderTransactionID,
		"timestamp":      n.Timestamp,
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, pairs[k]))
	}
	return strings.Join(parts, "&")
}

// ComputeSignature returns the hex-encoded HMAC-SHA256 of the canonical
// payload under the shared secret.
func ComputeSignature(n *PaymentNotification, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(SignatureBase(n)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares it to the
// received header value in constant time. Missing header or secret always
// fails closed.
func VerifySignature(n *PaymentNotification, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(SignatureBase(n)))
	return hmac.Equal(mac.Sum(nil), decoded)
}

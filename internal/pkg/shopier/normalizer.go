package shopier

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// flexFloat tolerates Shopier sending numeric fields either as JSON numbers
// or as quoted strings ("150.00").
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// rawPayload models the wire shape including every legacy field alias Shopier
// has been observed to send.
type rawPayload struct {
	PlatformOrderID  string    `json:"platform_order_id"`
	OrderID          string    `json:"orderId"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"payment_status"`
	TotalOrderValue  flexFloat `json:"total_order_value"`
	Amount           flexFloat `json:"amount"`
	Currency         string    `json:"currency"`
	TransactionID    string    `json:"transaction_id"`
	ShopierPaymentID string    `json:"shopier_payment_id"`
	Timestamp        string    `json:"timestamp"`
	PackageID        string    `json:"package_id"`
	UserID           string    `json:"user_id"`
}

var validate = validator.New()

// Normalize parses and validates a raw webhook body into a canonical
// PaymentNotification. Field aliases are resolved here, in one place, so the
// rest of the system only ever sees the normalized shape. A non-nil error is
// either a *ValidationError listing every violation, or a JSON syntax error
// wrapped in one.
func Normalize(body []byte, receivedAt time.Time) (*PaymentNotification, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ValidationError{Fields: []FieldViolation{
			{Field: "body", Reason: "malformed JSON: " + err.Error()},
		}}
	}

	n := &PaymentNotification{
		OrderRef:              firstNonEmpty(raw.PlatformOrderID, raw.OrderID),
		RawStatus:             firstNonEmpty(raw.Status, raw.PaymentStatus),
		Amount:                float64(firstNonZero(raw.TotalOrderValue, raw.Amount)),
		Currency:              strings.ToUpper(strings.TrimSpace(raw.Currency)),
		ProviderTransactionID: firstNonEmpty(raw.TransactionID, raw.ShopierPaymentID),
		Timestamp:             strings.TrimSpace(raw.Timestamp),
		PackageID:             strings.TrimSpace(raw.PackageID),
		UserID:                strings.TrimSpace(raw.UserID),
	}
	n.Status = normalizeStatus(n.RawStatus)
	if n.Currency == "" {
		n.Currency = "TRY"
	}
	if n.Timestamp == "" {
		n.Timestamp = receivedAt.UTC().Format(time.RFC3339)
	}

	if err := validate.Struct(n); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, &ValidationError{Fields: []FieldViolation{
				{Field: "body", Reason: err.Error()},
			}}
		}
		out := &ValidationError{}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, FieldViolation{
				Field:  wireFieldName(fe.Field()),
				Reason: violationReason(fe),
			})
		}
		return nil, out
	}
	return n, nil
}

func normalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "paid":
		return StatusSuccess
	case "failed", "failure", "cancelled", "canceled":
		return StatusFailed
	case "":
		return ""
	default:
		return StatusOther
	}
}

// wireFieldName maps struct field names back to the canonical wire field the
// integrator has to fix.
func wireFieldName(structField string) string {
	switch structField {
	case "OrderRef":
		return "platform_order_id"
	case "Status":
		return "status"
	case "Amount":
		return "total_order_value"
	case "Currency":
		return "currency"
	case "ProviderTransactionID":
		return "transaction_id"
	case "Timestamp":
		return "timestamp"
	default:
		return structField
	}
}

func violationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed rule " + fe.Tag()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func firstNonZero(values ...flexFloat) flexFloat {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

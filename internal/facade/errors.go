package facade

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

// errorBody covers the error shapes the backend emits: {"detail": ...},
// {"error": ...} and {"message": ...}, optionally naming the product at fault.
type errorBody struct {
	Message   string          `json:"message"`
	Detail    string          `json:"detail"`
	Error     json.RawMessage `json:"error"`
	ProductID *int64          `json:"product_id"`
}

func (b errorBody) text() string {
	if msg := strings.TrimSpace(b.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(b.Detail); msg != "" {
		return msg
	}
	var plain string
	if len(b.Error) > 0 && json.Unmarshal(b.Error, &plain) == nil {
		return strings.TrimSpace(plain)
	}
	return ""
}

// errServerMessage marks errors whose message came from the backend itself.
var errServerMessage = errors.New("backend supplied message")

// ParseResponseError maps a non-2xx backend response onto a typed error whose
// message is the server's own wording when it supplied one.
func ParseResponseError(status int, body []byte) error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)

	details := map[string]any{"status": status}
	if parsed.ProductID != nil {
		details["product_id"] = *parsed.ProductID
	}

	message := parsed.text()
	if message == "" {
		message = fmt.Sprintf("backend returned status %d", status)
		return pkgerrors.New(codeForStatus(status, message), message).WithDetails(details)
	}
	return pkgerrors.Wrap(codeForStatus(status, message), errServerMessage, message).WithDetails(details)
}

// ServerMessage returns the backend's own wording carried by err, if it sent one.
func ServerMessage(err error) (string, bool) {
	if !errors.Is(err, errServerMessage) {
		return "", false
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return "", false
	}
	return typed.Message(), true
}

func codeForStatus(status int, message string) pkgerrors.Code {
	switch {
	case status >= 500:
		return pkgerrors.CodeDependency
	case isStockMessage(message) && (status == http.StatusConflict || status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		return pkgerrors.CodeStock
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	case status == http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case status == http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusPaymentRequired:
		return pkgerrors.CodePayment
	case status == http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		return pkgerrors.CodeValidation
	}
}

func isStockMessage(message string) bool {
	return strings.Contains(strings.ToLower(message), "stock")
}

package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigError reports a gateway setting that is missing or invalid. It is
// returned before any network call is made.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gateway is not configured: missing %s", e.Field)
}

// StatusError is a non-2xx response from the upstream gateway.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// RateLimited reports whether the upstream rejected the request with 429.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// PaymentRequired reports whether the upstream rejected the request with 402.
func (e *StatusError) PaymentRequired() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

// Client-facing messages. These are stable and never include upstream bodies.
const (
	msgRateLimited     = "Rate limit exceeded, please try again later."
	msgPaymentRequired = "Payment required, please add credits to your AI workspace."
	msgNotConfigured   = "AI gateway is not configured."
	msgUpstream        = "AI gateway error."
)

// HTTPStatus maps a gateway error to the status code returned to the client:
// 429 and 402 pass through, everything else is a 500.
func HTTPStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) && (se.RateLimited() || se.PaymentRequired()) {
		return se.StatusCode
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-facing message for a gateway error.
func PublicMessage(err error) string {
	var (
		se *StatusError
		ce *ConfigError
	)
	switch {
	case errors.As(err, &se) && se.RateLimited():
		return msgRateLimited
	case errors.As(err, &se) && se.PaymentRequired():
		return msgPaymentRequired
	case errors.As(err, &ce):
		return msgNotConfigured
	default:
		return msgUpstream
	}
}

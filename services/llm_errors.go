package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ExternalServiceError is a failed call to the clarifier or telephony
// provider, classified by HTTP-like status code
type ExternalServiceError struct {
	Service    string `json:"service"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("[%s %d] %s", e.Service, e.StatusCode, e.Message)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is temporary and can be retried
func (e *ExternalServiceError) IsRetryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusBadGateway ||
		e.StatusCode == http.StatusServiceUnavailable ||
		e.StatusCode == http.StatusGatewayTimeout
}

func (e *ExternalServiceError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsPaymentError returns true for exhausted credits or quota
func (e *ExternalServiceError) IsPaymentError() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

func (e *ExternalServiceError) IsModerationError() bool {
	return e.StatusCode == http.StatusForbidden
}

func (e *ExternalServiceError) IsTimeout() bool {
	return e.StatusCode == http.StatusRequestTimeout
}

// IsContextLengthError returns true if the prompt was too long for the model
func (e *ExternalServiceError) IsContextLengthError() bool {
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "context") &&
		(strings.Contains(msg, "length") ||
			strings.Contains(msg, "exceeded") ||
			strings.Contains(msg, "too long"))
}

// ParseHTTPError turns a non-2xx provider response into an
// ExternalServiceError. Both {"error":{"message":..}} and flat
// {"message":..,"code":..} bodies are understood.
func ParseHTTPError(service string, httpResp *http.Response) error {
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &ExternalServiceError{Service: service, StatusCode: httpResp.StatusCode, Message: "failed to read body"}
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Error.Message != "":
			msg = errResp.Error.Message
		case errResp.Message != "":
			msg = errResp.Message
		}
	}

	return &ExternalServiceError{
		Service:    service,
		StatusCode: httpResp.StatusCode,
		Message:    msg,
	}
}

// ClassifyError converts an SDK or transport error into an
// ExternalServiceError, falling back to message sniffing when the SDK gives
// no status code
func ClassifyError(service string, err error) *ExternalServiceError {
	if err == nil {
		return nil
	}

	var classified *ExternalServiceError
	if errors.As(err, &classified) {
		return classified
	}

	wrap := func(code int, msg string) *ExternalServiceError {
		return &ExternalServiceError{Service: service, StatusCode: code, Message: msg, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrap(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return wrap(reqErr.HTTPStatusCode, reqErr.Error())
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return wrap(geminiErr.Code, geminiErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(http.StatusRequestTimeout, "Request timeout")
	}
	if errors.Is(err, ErrCircuitOpen) {
		return wrap(http.StatusServiceUnavailable, err.Error())
	}

	errMsg := err.Error()
	lower := strings.ToLower(errMsg)

	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return wrap(http.StatusRequestTimeout, "Request timeout")
	case strings.Contains(lower, "context") &&
		(strings.Contains(lower, "length") || strings.Contains(lower, "too long")):
		return wrap(http.StatusBadRequest, errMsg)
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return wrap(http.StatusUnauthorized, "Authentication failed")
	case strings.Contains(lower, "insufficient") || strings.Contains(lower, "quota") || strings.Contains(lower, "billing"):
		return wrap(http.StatusPaymentRequired, "Insufficient credits or quota exceeded")
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return wrap(http.StatusTooManyRequests, "Rate limit exceeded")
	case strings.Contains(lower, "bad gateway"):
		return wrap(http.StatusBadGateway, "Bad gateway")
	case strings.Contains(lower, "service unavailable") || strings.Contains(lower, "temporarily unavailable"):
		return wrap(http.StatusServiceUnavailable, "Service temporarily unavailable")
	case strings.Contains(lower, "circuit breaker") && strings.Contains(lower, "open"):
		return wrap(http.StatusServiceUnavailable, errMsg)
	}

	return wrap(http.StatusInternalServerError, errMsg)
}

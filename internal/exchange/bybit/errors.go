package bybit

import (
	"encoding/json"
	"errors"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	boterrors "github.com/ducminhle1904/crypto-swing-bot/internal/errors"
)

// APIError is a non-zero retCode returned by Bybit
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

var errMissingOrderFields = errors.New("symbol, side and qty are required")

// Common Bybit error codes
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeUnauthorized        = 10007
	ErrCodeOrderNotFound       = 110001
	ErrCodeInvalidOrderType    = 110004
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeInvalidPrice        = 110021
	ErrCodeMarketClosed        = 110043
	ErrCodeSpotBalance         = 170131
)

// classify maps an API or transport error of operation to the bot error
// taxonomy. Market data failures become DATA_FETCH, order failures
// ORDER_EXECUTION; authentication and rate limits keep their own category.
func classify(operation string, ep endpoint, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		wrapped := boterrors.CategorizeError(err, "bybit", operation)
		switch wrapped.Category {
		case boterrors.ErrorCategoryCredentials, boterrors.ErrorCategoryRateLimit:
			return wrapped
		}
		return categoryFor(operation, ep, err, wrapped.Retryable)
	}

	switch apiErr.Code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeUnauthorized:
		return boterrors.WrapError(apiErr, boterrors.ErrorCategoryCredentials, "bybit", operation)
	case ErrCodeRateLimitExceeded:
		return boterrors.NewRateLimitError("bybit", operation, apiErr)
	case ErrCodeInvalidTimestamp:
		return categoryFor(operation, ep, apiErr, true)
	case ErrCodeInsufficientBalance, ErrCodeSpotBalance, ErrCodeInvalidQuantity, ErrCodeInvalidPrice,
		ErrCodeInvalidOrderType, ErrCodeSymbolNotFound, ErrCodeMarketClosed:
		return categoryFor(operation, ep, apiErr, false)
	}
	return categoryFor(operation, ep, apiErr, apiErr.Code >= 500 && apiErr.Code < 600)
}

func categoryFor(operation string, ep endpoint, err error, retryable bool) error {
	if ep == endpointPlaceOrder {
		return boterrors.NewOrderExecutionError("bybit", operation, err).WithRetryable(retryable)
	}
	return boterrors.NewDataFetchError("bybit", operation, err).WithRetryable(retryable)
}

// decode checks the response envelope and unmarshals the result into out
func decode(resp *bybit_api.ServerResponse, out interface{}) error {
	if resp == nil {
		return fmt.Errorf("empty response")
	}
	if resp.RetCode != 0 {
		return &APIError{Code: resp.RetCode, Message: resp.RetMsg}
	}

	resultBytes, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory represents the kinds of failure the agent distinguishes
type ErrorCategory string

const (
	// Errors that must stop startup
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Recovered locally by skipping decisions or disabling the ML gate
	ErrorCategoryInsufficientData ErrorCategory = "INSUFFICIENT_DATA"

	// Retried with backoff, then the transition is rolled back
	ErrorCategoryOrderExecution ErrorCategory = "ORDER_EXECUTION"

	// The current cycle is skipped
	ErrorCategoryDataFetch ErrorCategory = "DATA_FETCH"

	// Optimizer candidates outside the search bounds
	ErrorCategoryInvalidParameter ErrorCategory = "INVALID_PARAMETER"

	// Transport level
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
)

// Sentinels for errors.Is. A BotError matches a sentinel of the same
// category whatever its component or operation.
var (
	ErrCredentials      = &BotError{Category: ErrorCategoryCredentials}
	ErrConfiguration    = &BotError{Category: ErrorCategoryConfiguration}
	ErrInsufficientData = &BotError{Category: ErrorCategoryInsufficientData}
	ErrOrderExecution   = &BotError{Category: ErrorCategoryOrderExecution}
	ErrDataFetch        = &BotError{Category: ErrorCategoryDataFetch}
	ErrInvalidParameter = &BotError{Category: ErrorCategoryInvalidParameter}
	ErrNetwork          = &BotError{Category: ErrorCategoryNetwork}
	ErrRateLimit        = &BotError{Category: ErrorCategoryRateLimit}
)

// BotError represents a categorized error with context
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *BotError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s", e.Category)
	if e.Component != "" {
		fmt.Fprintf(&b, ":%s", e.Component)
	}
	b.WriteString("]")
	if e.Operation != "" {
		fmt.Fprintf(&b, " %s", e.Operation)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *BotError) Unwrap() error {
	return e.Underlying
}

// Is matches category sentinels (no component and no operation set)
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	if t == e {
		return true
	}
	return t.Component == "" && t.Operation == "" && t.Category == e.Category
}

// IsRetryable returns whether this error can be retried
func (e *BotError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the agent
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryCredentials || e.Category == ErrorCategoryConfiguration
}

// NewBotError creates a new categorized bot error
func NewBotError(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with bot error context
func WrapError(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

// WithContext adds context information to the error
func (e *BotError) WithContext(key string, value interface{}) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *BotError) WithRetryable(retryable bool) *BotError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryNetwork, ErrorCategoryRateLimit, ErrorCategoryDataFetch, ErrorCategoryOrderExecution:
		return true
	default:
		return false
	}
}

// CategoryOf returns the category of the first BotError in err's chain,
// or "" when there is none
func CategoryOf(err error) ErrorCategory {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Category
	}
	return ""
}

// IsRetryable reports whether err carries a retryable BotError
func IsRetryable(err error) bool {
	var botErr *BotError
	return errors.As(err, &botErr) && botErr.Retryable
}

// IsFatal reports whether err carries a fatal BotError
func IsFatal(err error) bool {
	var botErr *BotError
	return errors.As(err, &botErr) && botErr.IsFatal()
}

// CategorizeError attempts to categorize a generic transport error
func CategorizeError(err error, component, operation string) *BotError {
	if err == nil {
		return nil
	}

	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "api secret") ||
		strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized"):
		return WrapError(err, ErrorCategoryCredentials, component, operation)
	case strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests"):
		return WrapError(err, ErrorCategoryRateLimit, component, operation)
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") ||
		strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial"):
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	default:
		return WrapError(err, ErrorCategoryNetwork, component, operation).WithRetryable(false)
	}
}

// Common error constructors

func NewInsufficientDataError(component, operation, message string, err error) *BotError {
	e := NewBotError(ErrorCategoryInsufficientData, component, operation, message)
	e.Underlying = err
	return e
}

func NewOrderExecutionError(component, operation string, err error) *BotError {
	return WrapError(orNil(err, "order failed"), ErrorCategoryOrderExecution, component, operation)
}

func NewDataFetchError(component, operation string, err error) *BotError {
	return WrapError(orNil(err, "data unavailable"), ErrorCategoryDataFetch, component, operation)
}

func NewInvalidParameterError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryInvalidParameter, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryConfiguration, component, operation, message)
}

func NewCredentialsError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryCredentials, component, operation, message)
}

func NewNetworkError(component, operation string, err error) *BotError {
	return WrapError(orNil(err, "network failure"), ErrorCategoryNetwork, component, operation)
}

func NewRateLimitError(component, operation string, err error) *BotError {
	return WrapError(orNil(err, "rate limited"), ErrorCategoryRateLimit, component, operation)
}

func orNil(err error, fallback string) error {
	if err == nil {
		return errors.New(fallback)
	}
	return err
}

// ErrorStats tracks error statistics
type ErrorStats struct {
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*BotError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*BotError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics. Errors without a
// BotError in their chain are counted under NETWORK.
func (es *ErrorStats) RecordError(err error) {
	if err == nil {
		return
	}
	var botErr *BotError
	if !errors.As(err, &botErr) {
		botErr = CategorizeError(err, "", "")
	}

	es.TotalErrors++
	es.ErrorsByCategory[botErr.Category]++

	es.RecentErrors = append(es.RecentErrors, botErr)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the share of errors in a specific category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByCategory[category]) / float64(es.TotalErrors)
}

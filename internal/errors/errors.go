package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	"github.com/kgarg2468/Skintel/internal/analysis"
	"github.com/kgarg2468/Skintel/internal/types"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation       ErrorCategory = "validation"
	CategoryInputTooLarge    ErrorCategory = "input_too_large"
	CategoryUnsupportedMedia ErrorCategory = "unsupported_media"
	CategoryDecodeFailure    ErrorCategory = "decode_failure"
	CategoryAnalysisFailed   ErrorCategory = "analysis_failed"
	CategoryTimeout          ErrorCategory = "timeout"
	CategoryRateLimit        ErrorCategory = "rate_limit"
	CategoryInternal         ErrorCategory = "internal"
	CategoryConfiguration    ErrorCategory = "configuration"
)

// User-facing texts. Pipeline failures past validation share one message.
const (
	analysisFailedMessage = "An error occurred during analysis. Please try uploading a different image or contact support if the problem persists."
	unsupportedMessage    = "Unsupported file type. Please upload a JPEG or PNG image."
	bytesPerMB            = 1024 * 1024
)

// AppError wraps errbuilder error with additional context
type AppError struct {
	*errbuilder.ErrBuilder
	Category    ErrorCategory `json:"category"`
	HTTPStatus  int           `json:"http_status"`
	UserMessage string        `json:"error"`
	Timestamp   time.Time     `json:"timestamp"`
	RequestID   string        `json:"request_id,omitempty"`
	StackTrace  string        `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", categoryCode(e.Category), e.ErrBuilder.Msg)
}

func categoryCode(c ErrorCategory) string {
	switch c {
	case CategoryValidation:
		return "VALIDATION_ERROR"
	case CategoryInputTooLarge:
		return "INPUT_TOO_LARGE"
	case CategoryUnsupportedMedia:
		return "UNSUPPORTED_MEDIA"
	case CategoryDecodeFailure:
		return "DECODE_FAILURE"
	case CategoryAnalysisFailed:
		return "ANALYSIS_FAILED"
	case CategoryTimeout:
		return "TIMEOUT_ERROR"
	case CategoryRateLimit:
		return "RATE_LIMIT_EXCEEDED"
	case CategoryConfiguration:
		return "CONFIGURATION_ERROR"
	case CategoryInternal:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// Response is the JSON body sent to clients. Causes and stack traces stay
// in the logs.
func (e *AppError) Response() gin.H {
	body := gin.H{
		"error":    e.UserMessage,
		"category": e.Category,
		"code":     categoryCode(e.Category),
	}
	if e.RequestID != "" {
		body["request_id"] = e.RequestID
	}
	return body
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder:  builder,
		Category:    category,
		HTTPStatus:  httpStatus,
		UserMessage: builder.Msg,
		Timestamp:   time.Now(),
	}
}

func withDetail(builder *errbuilder.ErrBuilder, key, value string) *errbuilder.ErrBuilder {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set(key, errors.New(value))
	return builder.WithDetails(errbuilder.NewErrDetails(errorMap))
}

// NewValidationError creates a validation error using errbuilder
func NewValidationError(message string, details ...interface{}) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(details) > 0 {
		builder = withDetail(builder, "validation_details", fmt.Sprintf("%v", details[0]))
	}

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewInputTooLargeError reports an upload over the size cap. size < 0 means
// the body was cut off before its length was known.
func NewInputTooLargeError(size, limit int64) *AppError {
	limitMB := float64(limit) / bytesPerMB
	msg := fmt.Sprintf("File exceeds the %.0fMB limit. Please upload a smaller image.", limitMB)
	if size >= 0 {
		msg = fmt.Sprintf("File size (%.1f MB) exceeds the %.0fMB limit. Please upload a smaller image.",
			float64(size)/bytesPerMB, limitMB)
	}

	builder := withDetail(errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg), "limit_bytes", fmt.Sprintf("%d", limit))

	return NewAppError(builder, CategoryInputTooLarge, http.StatusRequestEntityTooLarge)
}

// NewUnsupportedMediaError reports an upload that is not JPEG or PNG
func NewUnsupportedMediaError(detected string) *AppError {
	builder := withDetail(errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(unsupportedMessage), "detected_type", detected)

	return NewAppError(builder, CategoryUnsupportedMedia, http.StatusUnsupportedMediaType)
}

// NewDecodeError reports bytes that claimed to be an image but did not decode
func NewDecodeError(cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(analysisFailedMessage)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryDecodeFailure, http.StatusUnprocessableEntity)
}

// NewAnalysisError reports any other pipeline failure
func NewAnalysisError(cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(analysisFailedMessage)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryAnalysisFailed, http.StatusInternalServerError)
}

// NewTimeoutError creates a timeout error using errbuilder
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError creates a rate limit error using errbuilder
func NewRateLimitError(retryAfter string) *AppError {
	builder := withDetail(errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded"), "retry_after", retryAfter)

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewInternalError creates an internal server error using errbuilder
func NewInternalError(message string, cause error) *AppError {
	builder := withDetail(errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error"), "internal_details", message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := NewAppError(builder, CategoryInternal, http.StatusInternalServerError)

	// Capture stack trace in development/debug mode
	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// NewConfigurationError creates a configuration error using errbuilder
func NewConfigurationError(message string, cause error) *AppError {
	builder := withDetail(errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error"), "config_details", message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// captureStackTrace captures a stack trace for debugging
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler is a Gin middleware that provides centralized error handling
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		appErr.RequestID = requestID(c)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr.Response())
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)
		appErr.StackTrace = captureStackTrace()
		appErr.RequestID = requestID(c)

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
	})
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var sizeErr *types.SizeError
	switch {
	case errors.As(err, &sizeErr):
		return NewInputTooLargeError(sizeErr.Size, sizeErr.Limit)
	case errors.Is(err, types.ErrUnsupportedMedia):
		return NewUnsupportedMediaError(err.Error())
	case errors.Is(err, types.ErrDecodeFailure):
		return NewDecodeError(err)
	case errors.Is(err, analysis.ErrAnalysisFailed):
		return NewAnalysisError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("Request deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewTimeoutError("Request cancelled", err)
	}

	var ebErr *errbuilder.ErrBuilder
	if errors.As(err, &ebErr) {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	return NewInternalError("An unexpected error occurred", err)
}

func requestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// LogError logs an error with appropriate level and context
func LogError(c *gin.Context, err *AppError) {
	errorMsg := err.ErrBuilder.Msg
	errorDetails := err.ErrBuilder.Details

	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", requestID(c),
	)

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryInputTooLarge, CategoryUnsupportedMedia:
		if len(errorDetails.Errors) > 0 {
			logEntry.Warn(errorMsg, "details", errorDetails.Errors)
		} else {
			logEntry.Warn(errorMsg)
		}
	case CategoryDecodeFailure, CategoryTimeout:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Info(errorMsg, "cause", cause)
		} else {
			logEntry.Info(errorMsg)
		}
	default:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Error(errorMsg, "cause", cause)
		} else {
			logEntry.Error(errorMsg)
		}
	}

	if err.StackTrace != "" && (gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode) {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// Abort records err on the context and stops the handler chain. ErrorHandler
// renders the response.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// SafeClose safely closes a resource and logs any errors
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}

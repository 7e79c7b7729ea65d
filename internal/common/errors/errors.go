// Package errors provides the standardized error taxonomy shared by the HTTP
// API, the CLI and the BPMN job worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Form boundary
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"

	// Attachments
	ErrCodeFileReadFailed      ErrorCode = "FILE_READ_FAILED"
	ErrCodeFileDecodeFailed    ErrorCode = "FILE_DECODE_FAILED"
	ErrCodeFileUnsupported     ErrorCode = "FILE_UNSUPPORTED"
	ErrCodeFileIndexOutOfRange ErrorCode = "FILE_INDEX_OUT_OF_RANGE"

	// External quote generator
	ErrCodeGeneratorRequestFailed   ErrorCode = "GENERATOR_REQUEST_FAILED"
	ErrCodeGeneratorAuthFailed      ErrorCode = "GENERATOR_AUTH_FAILED"
	ErrCodeGeneratorTimeout         ErrorCode = "GENERATOR_TIMEOUT"
	ErrCodeGeneratorEmptyResponse   ErrorCode = "GENERATOR_EMPTY_RESPONSE"
	ErrCodeGeneratorInvalidResponse ErrorCode = "GENERATOR_INVALID_RESPONSE"

	// Document export
	ErrCodeExportUnavailable ErrorCode = "EXPORT_UNAVAILABLE"
	ErrCodeExportFailed      ErrorCode = "EXPORT_FAILED"

	// Session lifecycle
	ErrCodeSessionNotFound        ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStoreFailed     ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeSubmissionInProgress   ErrorCode = "SUBMISSION_IN_PROGRESS"
	ErrCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeNoResult               ErrorCode = "NO_RESULT"

	// Email draft delivery
	ErrCodeDeliveryUnavailable ErrorCode = "DELIVERY_UNAVAILABLE"
	ErrCodeDeliveryFailed      ErrorCode = "DELIVERY_FAILED"

	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// GeneratorFailureMessage is shown for every generator failure, transient or
// permanent.
const GeneratorFailureMessage = "The quote could not be generated. Check your connection and submit again."

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Please complete the required project fields", details)
}

func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse input", err.Error())
}

func NewFileReadFailedError(name string, err error) *StandardError {
	return newError(ErrCodeFileReadFailed, "Attachment could not be read", fmt.Sprintf("file: %s, error: %s", name, err.Error()))
}

func NewFileDecodeFailedError(name string, err error) *StandardError {
	return newError(ErrCodeFileDecodeFailed, "Attachment content could not be decoded", fmt.Sprintf("file: %s, error: %s", name, err.Error()))
}

func NewFileUnsupportedError(name, mimeType string) *StandardError {
	return newError(ErrCodeFileUnsupported, "Attachment type is not supported", fmt.Sprintf("file: %s, type: %s", name, mimeType))
}

func NewFileIndexOutOfRangeError(index, count int) *StandardError {
	return newError(ErrCodeFileIndexOutOfRange, "No attachment at that position", fmt.Sprintf("index: %d, attachments: %d", index, count))
}

func NewGeneratorRequestFailedError(err error) *StandardError {
	return newError(ErrCodeGeneratorRequestFailed, GeneratorFailureMessage, err.Error())
}

func NewGeneratorAuthFailedError(details string) *StandardError {
	return newError(ErrCodeGeneratorAuthFailed, GeneratorFailureMessage, details)
}

func NewGeneratorTimeoutError(err error) *StandardError {
	return newError(ErrCodeGeneratorTimeout, GeneratorFailureMessage, err.Error())
}

func NewGeneratorEmptyResponseError() *StandardError {
	return newError(ErrCodeGeneratorEmptyResponse, GeneratorFailureMessage, "response carried no text")
}

func NewGeneratorInvalidResponseError(details string) *StandardError {
	return newError(ErrCodeGeneratorInvalidResponse, GeneratorFailureMessage, details)
}

func NewExportUnavailableError() *StandardError {
	return newError(ErrCodeExportUnavailable, "Document export is not available", "no exporter configured")
}

func NewExportFailedError(err error) *StandardError {
	return newError(ErrCodeExportFailed, "Document export failed", err.Error())
}

func NewSessionNotFoundError(id string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Session not found", fmt.Sprintf("sessionId: %s", id))
}

func NewSessionStoreFailedError(err error) *StandardError {
	e := newError(ErrCodeSessionStoreFailed, "Session storage error", err.Error())
	e.Retryable = true
	return e
}

func NewSubmissionInProgressError() *StandardError {
	return newError(ErrCodeSubmissionInProgress, "A quote is already being generated", "wait for the current submission to finish")
}

func NewInvalidStateTransitionError(from, event string) *StandardError {
	return newError(ErrCodeInvalidStateTransition, "Action not allowed in the current state", fmt.Sprintf("state: %s, event: %s", from, event))
}

func NewNoResultError() *StandardError {
	return newError(ErrCodeNoResult, "No quote has been generated yet", "")
}

func NewDeliveryUnavailableError() *StandardError {
	return newError(ErrCodeDeliveryUnavailable, "Email delivery is not configured", "")
}

func NewDeliveryFailedError(err error) *StandardError {
	e := newError(ErrCodeDeliveryFailed, "Email delivery failed", err.Error())
	e.Retryable = true
	return e
}

func NewConfigInvalidError(err error) *StandardError {
	return newError(ErrCodeConfigInvalid, "Configuration is invalid", err.Error())
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error())
}

// ==========================
// 4. Inspection Helpers
// ==========================

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// Normalize always yields a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// UserMessage maps any error to the single message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr := Normalize(err)
	if IsGeneratorFailure(stdErr.Code) {
		return GeneratorFailureMessage
	}
	return stdErr.Message
}

// IsGeneratorFailure reports whether code belongs to the generator family.
func IsGeneratorFailure(code ErrorCode) bool {
	return strings.HasPrefix(string(code), "GENERATOR_")
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:         "QUOTE_INPUT_INVALID",
	ErrCodeInputParsingFailed:       "QUOTE_INPUT_INVALID",
	ErrCodeGeneratorRequestFailed:   "QUOTE_GENERATION_FAILED",
	ErrCodeGeneratorAuthFailed:      "QUOTE_GENERATION_FAILED",
	ErrCodeGeneratorTimeout:         "QUOTE_GENERATION_FAILED",
	ErrCodeGeneratorEmptyResponse:   "QUOTE_GENERATION_FAILED",
	ErrCodeGeneratorInvalidResponse: "QUOTE_GENERATION_FAILED",
}

// GetRetryCount returns how many automatic retries a code earns. Quote
// generation is never retried automatically; resubmission is manual.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionStoreFailed, ErrCodeDeliveryFailed:
		return 2
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "GENERATOR_"):
		return "GENERATOR"
	case strings.HasPrefix(codeStr, "FILE_"):
		return "ATTACHMENT"
	case strings.HasPrefix(codeStr, "EXPORT_"):
		return "EXPORT"
	case strings.HasPrefix(codeStr, "DELIVERY_"):
		return "DELIVERY"
	case strings.HasPrefix(codeStr, "SESSION_"), code == ErrCodeSubmissionInProgress,
		code == ErrCodeInvalidStateTransition, code == ErrCodeNoResult:
		return "SESSION"
	case strings.Contains(codeStr, "VALIDATION"), strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}

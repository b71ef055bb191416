package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures for callers and for HTTP status mapping.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConfiguration Kind = "configuration"
	KindGateway       Kind = "gateway"
	KindStore         Kind = "store"
	KindInternal      Kind = "internal"
)

// GatewayReason narrows a gateway failure.
type GatewayReason string

const (
	ReasonQuotaExceeded GatewayReason = "quota_exceeded"
	ReasonModelNotFound GatewayReason = "model_not_found"
	ReasonUnknown       GatewayReason = "unknown"
)

// Machine-readable error codes returned to clients.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeModelNotFound = "MODEL_NOT_FOUND"
	CodeGeneration    = "GENERATION_FAILED"
	CodeStore         = "STORE_ERROR"
	CodeInternal      = "INTERNAL_ERROR"
)

// Sentinels usable with errors.Is against any *Error of the matching kind.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrGateway       = errors.New("gateway error")
	ErrStore         = errors.New("store error")
)

var kindSentinels = map[Kind]error{
	KindValidation:    ErrValidation,
	KindNotFound:      ErrNotFound,
	KindConfiguration: ErrConfiguration,
	KindGateway:       ErrGateway,
	KindStore:         ErrStore,
}

// Error is the single error type that crosses package boundaries. Message is
// safe to show to clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Reason  GatewayReason
	Message string
	Hint    string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// Code returns the stable machine-readable code for the error.
func (e *Error) Code() string {
	switch e.Kind {
	case KindValidation:
		return CodeValidation
	case KindNotFound:
		return CodeNotFound
	case KindConfiguration:
		return CodeConfiguration
	case KindGateway:
		switch e.Reason {
		case ReasonQuotaExceeded:
			return CodeQuotaExceeded
		case ReasonModelNotFound:
			return CodeModelNotFound
		default:
			return CodeGeneration
		}
	case KindStore:
		return CodeStore
	default:
		return CodeInternal
	}
}

// MissingField reports an absent required input.
func MissingField(field string) *Error {
	return &Error{Kind: KindValidation, Message: field + " is required", Details: map[string]any{"field": field}}
}

// Invalid reports malformed input.
func Invalid(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// NotFound reports an unresolvable identifier.
func NotFound(message string, details map[string]any) *Error {
	return &Error{Kind: KindNotFound, Message: message, Details: details}
}

// Configuration reports missing or unusable configuration.
func Configuration(message, hint string) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Hint: hint}
}

// Gateway reports a classified provider failure.
func Gateway(reason GatewayReason, message, hint string, err error) *Error {
	return &Error{Kind: KindGateway, Reason: reason, Message: message, Hint: hint, Err: err}
}

// StoreFailure wraps a persistence error for operation op.
func StoreFailure(op string, err error) *Error {
	return &Error{Kind: KindStore, Message: "store " + op + " failed", Err: err}
}

// As extracts a *Error from err. Unclassified errors become KindInternal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

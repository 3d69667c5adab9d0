package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeAuthentication      ErrorType = "authentication"
	ErrorTypeInvalidToken        ErrorType = "invalid_token"
	ErrorTypeForbidden           ErrorType = "forbidden"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeRegistration        ErrorType = "registration"
	ErrorTypeUnmappedTenant      ErrorType = "unmapped_tenant"
	ErrorTypeUpstreamUnavailable ErrorType = "upstream_unavailable"
	ErrorTypeUpstreamQuery       ErrorType = "upstream_query"
	ErrorTypePersistence         ErrorType = "persistence"
)

// Detail keys carried by errors raised from upstream responses
const (
	DetailUpstreamStatus = "upstream_status"
	DetailUpstreamBody   = "upstream_body"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithUpstream records the upstream status code and response body
func (e *DomainError) WithUpstream(status int, body []byte) *DomainError {
	e.WithDetail(DetailUpstreamStatus, status)
	if len(body) > 0 {
		e.WithDetail(DetailUpstreamBody, string(body))
	}
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is comparisons; match on type only.
var (
	ErrInvalidInput        = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrAuthentication      = NewDomainError(ErrorTypeAuthentication, "invalid credentials", nil)
	ErrInvalidToken        = NewDomainError(ErrorTypeInvalidToken, "invalid authentication token", nil)
	ErrForbidden           = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrNotFound            = NewDomainError(ErrorTypeNotFound, "resource not found", nil)
	ErrRegistration        = NewDomainError(ErrorTypeRegistration, "registration failed", nil)
	ErrUnmappedTenant      = NewDomainError(ErrorTypeUnmappedTenant, "pipe is not mapped to an organization", nil)
	ErrUpstreamUnavailable = NewDomainError(ErrorTypeUpstreamUnavailable, "upstream service unavailable", nil)
	ErrUpstreamQuery       = NewDomainError(ErrorTypeUpstreamQuery, "upstream query failed", nil)
	ErrPersistence         = NewDomainError(ErrorTypePersistence, "data store operation failed", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsAuthenticationError checks if an error is a rejected login
func IsAuthenticationError(err error) bool {
	return GetErrorType(err) == ErrorTypeAuthentication
}

// IsInvalidTokenError checks if an error is a rejected bearer token
func IsInvalidTokenError(err error) bool {
	return GetErrorType(err) == ErrorTypeInvalidToken
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsRegistrationError checks if an error is a failed account creation
func IsRegistrationError(err error) bool {
	return GetErrorType(err) == ErrorTypeRegistration
}

// IsUnmappedTenantError checks if an error is an unmapped pipe
func IsUnmappedTenantError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnmappedTenant
}

// IsUpstreamUnavailableError checks if an error is a transport failure toward an upstream
func IsUpstreamUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUpstreamUnavailable
}

// IsUpstreamQueryError checks if an error is an application-level upstream failure
func IsUpstreamQueryError(err error) bool {
	return GetErrorType(err) == ErrorTypeUpstreamQuery
}

// IsPersistenceError checks if an error is a data store failure
func IsPersistenceError(err error) bool {
	return GetErrorType(err) == ErrorTypePersistence
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// GetUpstreamStatus returns the upstream status recorded on err, or 0
func GetUpstreamStatus(err error) int {
	status, _ := GetErrorDetails(err)[DetailUpstreamStatus].(int)
	return status
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) *DomainError {
	return NewDomainError(errType, message, err)
}

// WrapUnavailable wraps a transport error toward an upstream service
func WrapUnavailable(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeUpstreamUnavailable, message, err)
}

// WrapPersistence wraps a data store error
func WrapPersistence(message string, err error) *DomainError {
	return NewDomainError(ErrorTypePersistence, message, err)
}

package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared between the coordinator and the HTTP layer.
const (
	CodePreconditionViolation  = "PRECONDITION_VIOLATION"
	CodeRoleViolation          = "ROLE_VIOLATION"
	CodeAlreadyAssigned        = "ALREADY_ASSIGNED"
	CodeAlreadyHasRole         = "ALREADY_HAS_ROLE"
	CodeSessionMismatch        = "SESSION_MISMATCH"
	CodeChainRejected          = "CHAIN_REJECTED"
	CodeChainInsufficientFunds = "CHAIN_INSUFFICIENT_FUNDS"
	CodeChainReverted          = "CHAIN_REVERTED"
	CodeChainTimeout           = "CHAIN_TIMEOUT"
	CodeChainNetwork           = "CHAIN_NETWORK_ERROR"
	CodeStoreError             = "STORE_ERROR"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewPreconditionViolation(message string, details map[string]any) error {
	return NewDomainError(CodePreconditionViolation, message, http.StatusConflict, details)
}

func NewRoleViolation(message string, details map[string]any) error {
	return NewDomainError(CodeRoleViolation, message, http.StatusForbidden, details)
}

func NewAlreadyAssigned(message string, details map[string]any) error {
	return NewDomainError(CodeAlreadyAssigned, message, http.StatusConflict, details)
}

func NewSessionMismatch(message string) error {
	return NewDomainError(CodeSessionMismatch, message, http.StatusConflict, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewStoreError(err error) error {
	return &DomainError{
		Code:       CodeStoreError,
		Message:    "record store failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewChainError maps a chain failure code onto the shared taxonomy. Reason
// carries the ledger-supplied detail (revert reason, node error).
func NewChainError(code, reason string) error {
	status := http.StatusBadGateway
	message := "chain operation failed"
	switch code {
	case CodeChainRejected:
		status = http.StatusConflict
		message = "transaction rejected by signer"
	case CodeChainInsufficientFunds:
		status = http.StatusPaymentRequired
		message = "insufficient funds"
	case CodeChainReverted:
		status = http.StatusUnprocessableEntity
		message = "transaction reverted"
	case CodeChainTimeout:
		status = http.StatusAccepted
		message = "transaction outcome pending"
	}
	details := map[string]any{}
	if reason != "" {
		details["reason"] = reason
	}
	return NewDomainError(code, message, status, details)
}

// IsRetryable reports whether the failure may be retried as submitted.
// Reverted transactions need a changed input; timeouts need reconciliation,
// not a blind resubmission.
func IsRetryable(err error) bool {
	de := ToDomainError(err)
	switch de.Code {
	case CodeChainRejected, CodeChainInsufficientFunds, CodeChainNetwork:
		return true
	}
	return false
}

// IsAmbiguous reports whether the true outcome of the operation is unknown
// and must be resolved by re-reading on-chain state.
func IsAmbiguous(err error) bool {
	return ToDomainError(err).Code == CodeChainTimeout
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

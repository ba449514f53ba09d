package errors

import (
	"fmt"
)

type ErrorCode string

const (
	InvalidInput           ErrorCode = "invalid_input"
	InvalidAmount          ErrorCode = "invalid_amount"
	InsufficientFunds      ErrorCode = "insufficient_funds"
	LimitExceeded          ErrorCode = "limit_exceeded"
	InvalidCredentials     ErrorCode = "invalid_credentials"
	DuplicateAccount       ErrorCode = "duplicate_account"
	AccountNotFound        ErrorCode = "account_not_found"
	ConcurrentModification ErrorCode = "concurrent_modification"
	StoreUnavailable       ErrorCode = "store_unavailable"
	InternalError          ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// Predefined errors for common cases
var (
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be a positive number")
	ErrInsufficientFunds      = NewAppError(InsufficientFunds, "insufficient funds")
	ErrLimitExceeded          = NewAppError(LimitExceeded, "amount exceeds the daily withdrawal limit")
	ErrInvalidCredentials     = NewAppError(InvalidCredentials, "card number or PIN is incorrect")
	ErrDuplicateAccount       = NewAppError(DuplicateAccount, "account already exists")
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrConcurrentModification = NewAppError(ConcurrentModification, "account was modified by another operation")
	ErrSameAccountTransfer    = NewAppError(InvalidInput, "cannot transfer to the same card")
)

// Code extracts the ErrorCode from any error produced by this package.
// Unknown errors map to InternalError.
func Code(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return InternalError
}

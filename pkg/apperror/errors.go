package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a bad-input error, raised before any transaction opens.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_002", "Amount must be positive", http.StatusBadRequest)
}

func ErrInvalidMethod(method string) *AppError {
	return New("VAL_003", fmt.Sprintf("Unknown payment method: %s", method), http.StatusBadRequest)
}

// ---- Not Found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- State Conflicts (STATE) ----

func ErrOrderNotPayable(status string) *AppError {
	return New("STATE_001", fmt.Sprintf("Order cannot accept payments in state %s", status), http.StatusConflict)
}

func ErrAmountExceedsBalance(remaining int64) *AppError {
	return New("STATE_002", fmt.Sprintf("Amount exceeds remaining balance of %d", remaining), http.StatusConflict)
}

func ErrSplitMismatch() *AppError {
	return New("STATE_003", "Sub-payment amounts do not sum to the payment amount", http.StatusConflict)
}

func ErrInsufficientPoints() *AppError {
	return New("STATE_004", "Insufficient loyalty points", http.StatusConflict)
}

func ErrNotRefundable() *AppError {
	return New("STATE_005", "Payment is not eligible for refund", http.StatusConflict)
}

func ErrRefundExceedsOriginal() *AppError {
	return New("STATE_006", "Refund amount exceeds original payment amount", http.StatusConflict)
}

func ErrAlreadyAwarded() *AppError {
	return New("STATE_007", "Birthday bonus already awarded this year", http.StatusConflict)
}

// ---- Gateway (GW) ----

func ErrGatewayFailure(reason string) *AppError {
	return New("GW_001", fmt.Sprintf("Payment gateway declined: %s", reason), http.StatusBadGateway)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GW_002", "Payment gateway unavailable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_003", "Operation requires manager role", http.StatusForbidden)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an unexpected store/transaction failure.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	// ErrNotFound indicates the requested card does not exist.
	ErrNotFound = errors.New("not_found")
	// ErrInvalidAmount covers non-numeric, non-positive or
	// negative-where-disallowed amounts.
	ErrInvalidAmount = errors.New("invalid_amount")
	// ErrInsufficientBalance indicates a spend larger than the card balance,
	// whether detected locally or reported by the backend.
	ErrInsufficientBalance = errors.New("insufficient_balance")
	// ErrUnsupported indicates an operation not available under the active
	// settlement strategy (e.g. clearing server-owned history).
	ErrUnsupported = errors.New("unsupported_operation")
	// ErrOverflow indicates money arithmetic left the representable range.
	ErrOverflow = errors.New("arithmetic_overflow")
	// ErrNetwork indicates the backend could not be reached or failed at the
	// transport level.
	ErrNetwork = errors.New("network_error")
	// ErrRemoteRejected indicates the backend returned a structured error.
	ErrRemoteRejected = errors.New("server_rejected")
)

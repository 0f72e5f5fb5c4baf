package shared

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the domain services. Callers match with errors.Is
// and branch on the kind rather than on message text.
var (
	// ErrValidation indicates malformed or out-of-range input, detected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("already exists")
	// ErrNotFound indicates the referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the entity exists but its status forbids the operation.
	ErrInvalidState = errors.New("state does not allow operation")
	// ErrInsufficientFunds indicates a withdrawal or transfer exceeding the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidCredentials indicates login failure. The message is identical for
	// unknown usernames and wrong passwords so the two cases cannot be told apart.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrStorage wraps unexpected persistence failures opaquely.
	ErrStorage = errors.New("storage failure")

	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// StorageErr wraps an unexpected persistence error as ErrStorage. The cause
// is flattened to text so driver internals never travel up the error chain.
func StorageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

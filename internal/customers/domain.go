package customers

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Customer is an account holder.
type Customer struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name for display.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ProfileUpdate carries optional profile changes. Nil fields stay untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

var (
	nameRe     = regexp.MustCompile(`^[a-zA-Z ]{2,50}$`)
	emailRe    = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phoneRe    = regexp.MustCompile(`^[0-9]{10}$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

// ValidateName checks a person name component. The field name feeds the
// error message, e.g. "first name".
func ValidateName(field, value string) error {
	if !nameRe.MatchString(value) {
		return fmt.Errorf("%w: %s must be 2-50 letters or spaces", shared.ErrValidation, field)
	}
	return nil
}

// ValidateEmail checks email shape.
func ValidateEmail(value string) error {
	if !emailRe.MatchString(value) {
		return fmt.Errorf("%w: email address is malformed", shared.ErrValidation)
	}
	return nil
}

// ValidatePhone checks for exactly ten digits.
func ValidatePhone(value string) error {
	if !phoneRe.MatchString(value) {
		return fmt.Errorf("%w: phone number must be exactly 10 digits", shared.ErrValidation)
	}
	return nil
}

// ValidateUsername checks the login identifier shape.
func ValidateUsername(value string) error {
	if !usernameRe.MatchString(value) {
		return fmt.Errorf("%w: username must be 3-20 characters of letters, digits or underscore", shared.ErrValidation)
	}
	return nil
}

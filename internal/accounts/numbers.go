package accounts

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// Account numbers look like ACC482917465: the fixed prefix plus nine digits.
const numberPrefix = "ACC"

var numberRe = regexp.MustCompile(`^ACC\d{9}$`)

var numberSpace = big.NewInt(1_000_000_000)

// GenerateNumber produces a candidate account number. Uniqueness is checked
// against storage by the caller, which retries on collision.
func GenerateNumber() (string, error) {
	n, err := rand.Int(rand.Reader, numberSpace)
	if err != nil {
		return "", fmt.Errorf("accounts: generate number: %w", err)
	}
	return fmt.Sprintf("%s%09d", numberPrefix, n), nil
}

// ValidNumber reports whether s has the account number shape.
func ValidNumber(s string) bool {
	return numberRe.MatchString(s)
}

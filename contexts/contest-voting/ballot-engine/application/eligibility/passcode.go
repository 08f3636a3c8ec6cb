package eligibility

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPasscode produces the bcrypt hash stored on a contest. A non-positive
// cost selects bcrypt.DefaultCost.
func HashPasscode(passcode string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(passcode)), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasscode(hash string, passcode string) bool {
	passcode = strings.TrimSpace(passcode)
	if strings.TrimSpace(hash) == "" || passcode == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}

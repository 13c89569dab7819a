package password

import (
	"golang.org/x/crypto/bcrypt"

	appErr "github.com/barbartender/bartender/internal/pkg/errors"
)

const (
	MinLength = 6
	MaxLength = 72
)

// codeCost is lower than the password cost; codes live for minutes and
// are validated on every submit.
const codeCost = bcrypt.MinCost + 4

func Hash(plain string) (string, error) {
	if len(plain) < MinLength || len(plain) > MaxLength {
		return "", appErr.ErrInvalid
	}
	return hash(plain, bcrypt.DefaultCost)
}

func HashCode(code string) (string, error) {
	return hash(code, codeCost)
}

func Compare(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

func hash(plain string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

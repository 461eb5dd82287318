package utils

import (
	"crypto/rand"
	"errors"
)

// GenerateDigits returns n uniformly random decimal digits read from
// crypto/rand. Bytes >= 250 are rejected so every digit is equally likely.
func GenerateDigits(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("digits: length must be positive")
	}

	const charset = "0123456789"
	code := make([]byte, 0, n)
	buf := make([]byte, n)

	for len(code) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			code = append(code, charset[int(b)%len(charset)])
			if len(code) == n {
				break
			}
		}
	}

	return string(code), nil
}

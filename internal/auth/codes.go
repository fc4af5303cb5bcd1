// Package auth implements the email-code login flow and session tokens.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeLength  = 8
	codeCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateCode returns an 8-character lowercase alphanumeric login code.
func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = codeCharset[n.Int64()]
	}
	return string(buf), nil
}

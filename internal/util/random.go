package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// OTPCodeLength is the number of digits in a one-time verification code.
const OTPCodeLength = 6

// SessionTokenBytes is the entropy, in bytes, behind a session token.
const SessionTokenBytes = 32

// GenerateOTPCode returns a random numeric one-time code. Codes never start
// with zero so they survive clients that parse them as integers.
func GenerateOTPCode() (string, error) {
	// 100000..999999
	max := big.NewInt(900000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// GenerateSessionToken returns a random hex session token.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var errInvalidCookie = errors.New("invalid cookie")

// Compute HMAC-SHA256 signature of a message using secret
func computeHMAC(message string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// Validate HMAC signature
func validateHMAC(message, sig string, secret []byte) bool {
	expected := computeHMAC(message, secret)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// sign encodes value and appends its signature: base64(value)|hmac.
func sign(value string, secret []byte) string {
	encoded := base64.URLEncoding.EncodeToString([]byte(value))
	return fmt.Sprintf("%s|%s", encoded, computeHMAC(encoded, secret))
}

// verify is the inverse of sign.
func verify(raw string, secret []byte) (string, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: bad format", errInvalidCookie)
	}
	encoded, sig := parts[0], parts[1]
	if !validateHMAC(encoded, sig, secret) {
		return "", fmt.Errorf("%w: bad signature", errInvalidCookie)
	}
	value, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidCookie, err)
	}
	return string(value), nil
}

package session

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

// ErrTokenNotFound is returned when an auth response carries no credential.
var ErrTokenNotFound = errors.New("response did not include a credential")

// tokenPaths lists where auth responses may carry the credential, in order.
var tokenPaths = []string{
	"accessToken",
	"token",
	"data.accessToken",
	"data.token",
}

// ExtractToken returns the first non-empty string found at tokenPaths.
func ExtractToken(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return "", ErrTokenNotFound
	}

	for _, path := range tokenPaths {
		v := gjson.GetBytes(raw, path)
		if v.Type != gjson.String {
			continue
		}
		if token := strings.TrimSpace(v.String()); token != "" {
			return token, nil
		}
	}

	return "", ErrTokenNotFound
}

// Expiry reads the exp claim of a JWT without verifying its signature. Opaque
// tokens report false.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

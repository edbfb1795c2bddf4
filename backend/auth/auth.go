package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes an operator account password with bcrypt.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares a bcrypt hash with a plain password.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// GenerateJWT issues a lightweight HMAC-signed session token (not a
// standard JWT) for one dashboard operator login: b64(email)|b64(role)|expUnix|sig.
// The signed role is what middleware.RequireRole checks against on every
// request, so a tampered role claim fails verification in ParseJWT rather
// than silently granting elevated node-control access.
func GenerateJWT(email, role string, ttl time.Duration, secret string) (string, error) {
	exp := time.Now().Add(ttl).Unix()
	parts := []string{
		base64.RawStdEncoding.EncodeToString([]byte(email)),
		base64.RawStdEncoding.EncodeToString([]byte(role)),
		fmt.Sprintf("%d", exp),
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, "|")))
	sig := base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
	parts = append(parts, sig)
	return strings.Join(parts, "|"), nil
}

// ParseJWT verifies and decodes a token issued by GenerateJWT, returning
// the signed email/role/expiry. Expiry is returned, not enforced here;
// middleware.Auth checks exp against time.Now() so a clock-independent
// caller (e.g. a test) can decode an already-expired token without this
// function rejecting it outright.
func ParseJWT(tok, secret string) (email, role string, exp time.Time, err error) {
	parts := strings.Split(tok, "|")
	if len(parts) != 4 {
		return "", "", time.Time{}, errors.New("invalid token")
	}
	emailBytes, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", time.Time{}, err
	}
	roleBytes, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", time.Time{}, err
	}
	var expUnix int64
	if _, err = fmt.Sscanf(parts[2], "%d", &expUnix); err != nil {
		return "", "", time.Time{}, err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts[:3], "|")))
	expected := base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[3])) {
		return "", "", time.Time{}, errors.New("signature")
	}
	return string(emailBytes), string(roleBytes), time.Unix(expUnix, 0), nil
}

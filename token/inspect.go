// Package token inspects access tokens on the client side. The backend is
// the only party that verifies signatures; here we parse unverified claims
// to answer one question cheaply: is this token already past its expiry?
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/ledgerline/go-invoicing-client/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the subset of access-token claims the client cares about.
// Exp may be nil when the token carries no expiry.
type Claims struct {
	Sub   string
	Email string
	Exp   *time.Time
}

// Inspect parses rawToken without verifying its signature and extracts the
// client-relevant claims.
func Inspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("[Inspect] empty token")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[Inspect] ParseUnverified")
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[Inspect] error extracting claims")
	}

	claims := &Claims{}
	claims.Sub, _ = mapClaims["sub"].(string)
	claims.Email, _ = mapClaims["email"].(string)
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.Exp = utils.Ptr(exp.Time)
	}
	return claims, nil
}

// Expired reports whether rawToken carries an exp claim in the past. A
// token that cannot be parsed is treated as expired; a token without an
// exp claim is not.
func Expired(rawToken string) bool {
	claims, err := Inspect(rawToken)
	if err != nil {
		return true
	}
	if claims.Exp == nil {
		return false
	}
	return claims.Exp.Before(NowTimeFunc())
}

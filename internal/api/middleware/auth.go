package middleware

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AuthOption configures Auth.
type AuthOption func(*verifier)

// WithRSAPublicKey additionally accepts RS256 tokens signed by an external
// identity provider.
func WithRSAPublicKey(key *rsa.PublicKey) AuthOption {
	return func(v *verifier) { v.rsaKey = key }
}

// WithIssuer rejects tokens whose iss claim differs from issuer.
func WithIssuer(issuer string) AuthOption {
	return func(v *verifier) { v.issuer = issuer }
}

type verifier struct {
	secret []byte
	rsaKey *rsa.PublicKey
	issuer string
}

func (v *verifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods()),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	return opts
}

func (v *verifier) methods() []string {
	var m []string
	if len(v.secret) > 0 {
		m = append(m, jwt.SigningMethodHS256.Alg())
	}
	if v.rsaKey != nil {
		m = append(m, jwt.SigningMethodRS256.Alg())
	}
	return m
}

func (v *verifier) key(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.secret) > 0 {
			return v.secret, nil
		}
	case *jwt.SigningMethodRSA:
		if v.rsaKey != nil {
			return v.rsaKey, nil
		}
	}
	return nil, jwt.ErrTokenSignatureInvalid
}

// Auth validates the bearer token and injects the normalised caller into the
// context under CallerKey. Tokens must carry exp.
func Auth(jwtSecret string, opts ...AuthOption) echo.MiddlewareFunc {
	v := &verifier{secret: []byte(jwtSecret)}
	for _, opt := range opts {
		opt(v)
	}
	parser := jwt.NewParser(v.parserOptions()...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := parser.ParseWithClaims(parts[1], claims, v.key)
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			caller := callerFromClaims(claims)
			c.Set(CallerKey, caller)
			c.Set(RoleKey, string(caller.Role))

			return next(c)
		}
	}
}

package httpkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"manuell_oppgave_backend/platform/config"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates caseworker access tokens against the identity
// provider's signing keys.
type TokenVerifier struct {
	keyFn    jwt.Keyfunc
	audience string
	issuer   string
}

// NewTokenVerifier fetches the JWKS and keeps it refreshed in the background
// for the lifetime of ctx.
func NewTokenVerifier(ctx context.Context, cfg config.AzureADConfig) (*TokenVerifier, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	k, err := keyfunc.NewDefaultCtx(fetchCtx, []string{cfg.GetAzureJWKSURI()})
	if err != nil {
		return nil, fmt.Errorf("failed to get signing keys: %w", err)
	}
	return NewTokenVerifierWithKeyFn(k.Keyfunc, cfg.GetAzureAppClientID(), cfg.GetAzureOpenIDIssuer()), nil
}

// NewTokenVerifierWithKeyFn builds a verifier around an explicit key function.
// An empty issuer disables the issuer check.
func NewTokenVerifierWithKeyFn(keyFn jwt.Keyfunc, audience, issuer string) *TokenVerifier {
	return &TokenVerifier{keyFn: keyFn, audience: audience, issuer: issuer}
}

// Verify parses and validates the raw token and returns its claims.
func (v *TokenVerifier) Verify(rawToken string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(v.audience),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.NewParser(opts...).Parse(rawToken, v.keyFn)
	if err != nil || !parsed.Valid {
		return nil, errors.New(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New(errInvalidToken)
	}
	return claims, nil
}

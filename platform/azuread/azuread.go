// Package azuread obtains access tokens for outbound calls, either as the
// application itself or on behalf of the signed-in caseworker.
package azuread

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"manuell_oppgave_backend/platform/config"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	expiryMargin       = time.Minute
)

// TokenSource returns a self-refreshing application token for scope.
func TokenSource(ctx context.Context, cfg config.AzureADConfig, scope string) oauth2.TokenSource {
	cc := &clientcredentials.Config{
		ClientID:     cfg.GetAzureAppClientID(),
		ClientSecret: cfg.GetAzureAppClientSecret(),
		TokenURL:     cfg.GetAzureTokenEndpoint(),
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cc.TokenSource(ctx)
}

// OnBehalfOf exchanges caseworker tokens for downstream tokens and caches the
// results until shortly before they expire.
type OnBehalfOf struct {
	cfg   config.AzureADConfig
	cache *ttlcache.Cache[string, *oauth2.Token]
}

// NewOnBehalfOf creates an exchanger. Call Close to stop the cache janitor.
func NewOnBehalfOf(cfg config.AzureADConfig) *OnBehalfOf {
	cache := ttlcache.New[string, *oauth2.Token](
		ttlcache.WithDisableTouchOnHit[string, *oauth2.Token](),
	)
	go cache.Start()
	return &OnBehalfOf{cfg: cfg, cache: cache}
}

// Close stops background cache eviction.
func (o *OnBehalfOf) Close() {
	o.cache.Stop()
}

// Token returns an access token for scope on behalf of the user token.
func (o *OnBehalfOf) Token(ctx context.Context, userToken, scope string) (string, error) {
	key := cacheKey(userToken, scope)
	if item := o.cache.Get(key); item != nil {
		return item.Value().AccessToken, nil
	}

	cc := &clientcredentials.Config{
		ClientID:     o.cfg.GetAzureAppClientID(),
		ClientSecret: o.cfg.GetAzureAppClientSecret(),
		TokenURL:     o.cfg.GetAzureTokenEndpoint(),
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
		EndpointParams: map[string][]string{
			"grant_type":          {grantTypeJWTBearer},
			"assertion":           {userToken},
			"requested_token_use": {"on_behalf_of"},
		},
	}

	tok, err := cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("on-behalf-of exchange for %s: %w", scope, err)
	}

	ttl := time.Until(tok.Expiry) - expiryMargin
	if !tok.Expiry.IsZero() && ttl > 0 {
		o.cache.Set(key, tok, ttl)
	}
	return tok.AccessToken, nil
}

func cacheKey(userToken, scope string) string {
	sum := sha256.Sum256([]byte(userToken))
	return scope + ":" + hex.EncodeToString(sum[:])
}

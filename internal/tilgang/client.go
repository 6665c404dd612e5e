// Package tilgang asks the access-control service whether a caseworker may
// see a person's data.
package tilgang

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"manuell_oppgave_backend/platform/apperr"
	"manuell_oppgave_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	personPath        = "/api/tilgang/navident/person"
	personIdentHeader = "nav-personident"
	correlationHeader = "Nav-Call-Id"
)

// TokenExchanger trades the caseworker's token for one scoped to the
// access-control service.
type TokenExchanger interface {
	Token(ctx context.Context, userToken, scope string) (string, error)
}

type tilgangResponse struct {
	ErGodkjent bool `json:"erGodkjent"`
}

// Client calls the access-control service.
type Client struct {
	baseURL     string
	scope       string
	httpClient  *http.Client
	tokens      TokenExchanger
	log         *logger.Logger
	backoffBase time.Duration
}

// New creates an access-control client.
func New(baseURL, scope string, tokens TokenExchanger, log *logger.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		scope:       scope,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		tokens:      tokens,
		log:         log,
		backoffBase: 200 * time.Millisecond,
	}
}

// HarTilgang reports whether the caseworker behind userToken may access the
// person. A denial is not an error.
func (c *Client) HarTilgang(ctx context.Context, userToken, pasientFnr string) (bool, error) {
	oboToken, err := c.tokens.Token(ctx, userToken, c.scope)
	if err != nil {
		return false, apperr.Unavailable("could not obtain token for tilgang", err)
	}

	var allowed bool
	backoff := retry.WithMaxRetries(2, retry.NewExponential(c.backoffBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := c.check(ctx, oboToken, pasientFnr)
		if err != nil {
			return retry.RetryableError(err)
		}
		allowed = ok
		return nil
	})
	if err != nil {
		c.log.WithContext(ctx).Error("tilgang check failed", "error", err)
		return false, apperr.Unavailable("tilgang check failed", err)
	}
	return allowed, nil
}

func (c *Client) check(ctx context.Context, token, pasientFnr string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+personPath, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(personIdentHeader, pasientFnr)
	req.Header.Set(correlationHeader, uuid.NewString())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out tilgangResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false, fmt.Errorf("decode tilgang response: %w", err)
		}
		return out.ErGodkjent, nil
	case http.StatusForbidden, http.StatusUnauthorized:
		return false, nil
	default:
		return false, fmt.Errorf("tilgang returned status %d", resp.StatusCode)
	}
}

// Package client provides the HTTP client for the external task API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"manuell_oppgave_backend/platform/apperr"
	"manuell_oppgave_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
)

const (
	taskPath          = "/task"
	correlationHeader = "X-Correlation-ID"
	maxRetries        = 2 // three attempts in total
)

// Client is the HTTP client for the task API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      oauth2.TokenSource
	log         *logger.Logger
	backoffBase time.Duration
}

// New creates a new task API client.
func New(baseURL string, tokens oauth2.TokenSource, log *logger.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		tokens:      tokens,
		log:         log,
		backoffBase: 500 * time.Millisecond,
	}
}

// Create creates a task. Transient failures are retried.
func (c *Client) Create(ctx context.Context, req OpprettOppgave) (OpprettOppgaveResponse, error) {
	var out OpprettOppgaveResponse
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, c.baseURL+taskPath, req, &out, http.StatusCreated, http.StatusOK)
	})
	if err != nil {
		return OpprettOppgaveResponse{}, err
	}
	return out, nil
}

// Get fetches the current state of a task. Transient failures are retried.
func (c *Client) Get(ctx context.Context, id int64) (Oppgave, error) {
	var out Oppgave
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, c.taskURL(id), nil, &out, http.StatusOK)
	})
	if err != nil {
		return Oppgave{}, err
	}
	return out, nil
}

// Patch applies a versioned update to a task. It is not retried: a version
// conflict is returned as apperr.Conflict with the current task, if the
// server sent one, in the error details.
func (c *Client) Patch(ctx context.Context, req FerdigstillOppgave) (Oppgave, error) {
	var out Oppgave
	if err := c.do(ctx, http.MethodPatch, c.taskURL(req.ID), req, &out, http.StatusOK); err != nil {
		return Oppgave{}, err
	}
	return out, nil
}

// Finalize fetches the task to learn its current version and patches it to
// FERDIGSTILT with that version.
func (c *Client) Finalize(ctx context.Context, id int64, enhet, veileder string) (Oppgave, error) {
	current, err := c.Get(ctx, id)
	if err != nil {
		return Oppgave{}, fmt.Errorf("fetch oppgave %d before finalize: %w", id, err)
	}
	return c.Patch(ctx, Ferdigstill(current, enhet, veileder))
}

func (c *Client) taskURL(id int64) string {
	return c.baseURL + taskPath + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(c.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		switch apperr.GetKind(err) {
		case apperr.KindConflict, apperr.KindNotFound, apperr.KindBadRequest, apperr.KindUnauthorized, apperr.KindForbidden:
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *Client) do(ctx context.Context, method, reqURL string, body, out any, okStatuses ...int) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return apperr.Unavailable("could not obtain token for oppgave", err)
	}

	correlationID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set(correlationHeader, correlationID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("oppgave request failed", "error", err, "method", method, "url", reqURL, "x_correlation_id", correlationID)
		return apperr.Unavailable("oppgave request failed", err)
	}
	defer resp.Body.Close()

	for _, ok := range okStatuses {
		if resp.StatusCode == ok {
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode oppgave response: %w", err)
			}
			return nil
		}
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch resp.StatusCode {
	case http.StatusConflict:
		c.log.Warn("oppgave conflict", "method", method, "url", reqURL, "x_correlation_id", correlationID)
		conflict := apperr.Conflict("oppgave was changed by someone else")
		var current Oppgave
		if json.Unmarshal(raw, &current) == nil && current.ID != 0 {
			conflict = conflict.WithDetails(current)
		}
		return conflict
	case http.StatusNotFound:
		return apperr.NotFound("oppgave not found")
	case http.StatusBadRequest:
		c.log.Error("oppgave bad request", "status", resp.StatusCode, "url", reqURL, "body", string(raw), "x_correlation_id", correlationID)
		return apperr.BadRequest("oppgave rejected the request")
	case http.StatusUnauthorized:
		return apperr.Unauthorized("oppgave rejected the token")
	case http.StatusForbidden:
		return apperr.Forbidden("oppgave denied access")
	default:
		c.log.Error("oppgave upstream error", "status", resp.StatusCode, "url", reqURL, "x_correlation_id", correlationID)
		return apperr.Unavailable(fmt.Sprintf("oppgave upstream error: status %d", resp.StatusCode), nil)
	}
}

// AlreadyFinalized reports whether err is a version conflict for a task the
// server reports as FERDIGSTILT.
func AlreadyFinalized(err error) bool {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		return false
	}
	current, ok := appErr.Details.(Oppgave)
	return ok && current.Status == StatusFerdigstilt
}

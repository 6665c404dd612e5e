package router

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "manuell_oppgave_backend/internal/http"
	"manuell_oppgave_backend/platform/appstate"
	"manuell_oppgave_backend/platform/httpkit"
	"manuell_oppgave_backend/platform/logger"
	"manuell_oppgave_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct{}

func (testConfig) GetHTTPAddr() string      { return ":0" }
func (testConfig) GetCORSAllowAll() bool    { return false }
func (testConfig) GetCORSOrigins() []string { return []string{"http://localhost:3000"} }
func (testConfig) GetCORSAllowCreds() bool  { return true }
func (testConfig) GetAdminRole() string     { return "admin" }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	ctx.Admin.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "admin pong") })
}

func newApp(t *testing.T, key *rsa.PrivateKey, health apphttp.HealthChecker) (*apphttp.App, *appstate.State) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	state := appstate.New()
	verifier := httpkit.NewTokenVerifierWithKeyFn(func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, "client-id", "")
	return &apphttp.App{
		Config:   testConfig{},
		Logger:   logger.Discard(),
		Health:   health,
		State:    state,
		Metrics:  metrics.New(),
		Verifier: verifier,
		Modules:  []apphttp.Module{pingModule{}},
	}, state
}

func token(t *testing.T, key *rsa.PrivateKey, roles ...string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud":      "client-id",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"NAVident": "Z999999",
		"roles":    roles,
	}).SignedString(key)
	require.NoError(t, err)
	return signed
}

func do(engine *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestProbesFollowState(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	app, state := newApp(t, key, pinger{})
	engine := New(app)

	assert.Equal(t, http.StatusOK, do(engine, "/internal/is_alive", "").Code)
	assert.Equal(t, http.StatusInternalServerError, do(engine, "/internal/is_ready", "").Code)

	state.MarkReady()
	assert.Equal(t, http.StatusOK, do(engine, "/internal/is_ready", "").Code)

	state.Fail()
	assert.Equal(t, http.StatusInternalServerError, do(engine, "/internal/is_alive", "").Code)
}

func TestReadinessChecksDatabase(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	app, state := newApp(t, key, pinger{err: errors.New("connection refused")})
	state.MarkReady()

	assert.Equal(t, http.StatusInternalServerError, do(New(app), "/internal/is_ready", "").Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	app, _ := newApp(t, key, pinger{})

	w := do(New(app), "/internal/prometheus", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "manuell_oppgave_incoming_message_count")
}

func TestModuleRoutesAreProtected(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	app, _ := newApp(t, key, pinger{})
	engine := New(app)

	assert.Equal(t, http.StatusUnauthorized, do(engine, "/api/v1/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(engine, "/api/v1/ping", token(t, key)).Code)

	assert.Equal(t, http.StatusForbidden, do(engine, "/api/v1/admin/ping", token(t, key)).Code)
	assert.Equal(t, http.StatusOK, do(engine, "/api/v1/admin/ping", token(t, key, "admin")).Code)
}

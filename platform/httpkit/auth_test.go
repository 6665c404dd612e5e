package httpkit

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"manuell_oppgave_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAudience = "manuell-oppgave-client"

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"aud":      testAudience,
		"iss":      "https://login.example/tenant/v2.0",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"NAVident": "Z999999",
		"roles":    []string{"admin"},
	}
}

func newEngine(key *rsa.PrivateKey) *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := NewTokenVerifierWithKeyFn(func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, testAudience, "https://login.example/tenant/v2.0")

	r := gin.New()
	protected := r.Group("/", AuthRequired(verifier, logger.Discard()))
	protected.GET("/me", func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"navIdent": id.NavIdent(), "token": id.AccessToken() != ""})
	})
	protected.GET("/admin", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })
	protected.GET("/super", RequireRole("superuser"), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	key := newKey(t)
	r := newEngine(key)

	w := get(r, "/me", sign(t, key, validClaims()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"navIdent":"Z999999","token":true}`, w.Body.String())
}

func TestAuthRequiredRejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	r := newEngine(key)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongAudience := validClaims()
	wrongAudience["aud"] = "someone-else"
	noIdent := validClaims()
	delete(noIdent, "NAVident")

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong key", token: sign(t, other, validClaims())},
		{name: "expired", token: sign(t, key, expired)},
		{name: "wrong audience", token: sign(t, key, wrongAudience)},
		{name: "no NAVident", token: sign(t, key, noIdent)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(r, "/me", tt.token).Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	key := newKey(t)
	r := newEngine(key)
	token := sign(t, key, validClaims())

	assert.Equal(t, http.StatusOK, get(r, "/admin", token).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/super", token).Code)
}

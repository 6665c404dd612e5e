package azuread

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"manuell_oppgave_backend/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") == grantTypeJWTBearer {
			assert.Equal(t, "user-token", r.PostForm.Get("assertion"))
			assert.Equal(t, "on_behalf_of", r.PostForm.Get("requested_token_use"))
			_, _ = w.Write([]byte(`{"access_token":"obo-token","token_type":"Bearer","expires_in":3600}`))
			return
		}
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`))
	}))
}

func TestOnBehalfOfCachesTokens(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	defer srv.Close()

	cfg := &config.Config{AzureAppClientID: "id", AzureAppClientSecret: "secret", AzureTokenEndpoint: srv.URL}
	obo := NewOnBehalfOf(cfg)
	defer obo.Close()

	for i := 0; i < 3; i++ {
		tok, err := obo.Token(context.Background(), "user-token", "api://tilgang/.default")
		require.NoError(t, err)
		assert.Equal(t, "obo-token", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenSourceUsesClientCredentials(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	defer srv.Close()

	cfg := &config.Config{AzureAppClientID: "id", AzureAppClientSecret: "secret", AzureTokenEndpoint: srv.URL}
	tok, err := TokenSource(context.Background(), cfg, "api://oppgave/.default").Token()
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok.AccessToken)
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/v1/manuellOppgave/:oppgaveId", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/manuellOppgave/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("200", http.MethodGet, "/api/v1/manuellOppgave/:oppgaveId"))
	assert.Equal(t, 1.0, got)
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	m := New()
	m.IncomingMessages.Inc()
	m.OppgaveFinalized.WithLabelValues("OK").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/prometheus", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "manuell_oppgave_incoming_message_count 1")
	assert.Contains(t, body, `manuell_oppgave_oppgave_finalized_count{outcome="OK"} 1`)
}

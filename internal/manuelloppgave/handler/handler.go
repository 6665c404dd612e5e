package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/internal/manuelloppgave/service"
	"manuell_oppgave_backend/internal/manuelloppgave/transport"
	"manuell_oppgave_backend/platform/httpkit"
	"manuell_oppgave_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Service is the case service used by the handler.
type Service interface {
	GetByOppgaveID(ctx context.Context, actor service.Actor, oppgaveID int64) (domain.ManuellOppgave, error)
	GetBySykmeldingID(ctx context.Context, actor service.Actor, sykmeldingID string) (domain.ManuellOppgave, error)
	ListUnfinished(ctx context.Context) ([]domain.UnfinishedOppgave, error)
	SykmeldingExists(ctx context.Context, sykmeldingID string) (bool, error)
	Finalize(ctx context.Context, cmd service.FinalizeCommand) error
	Delete(ctx context.Context, actor service.Actor, sykmeldingID string) error
}

// Handler handles HTTP requests for manual review cases.
type Handler struct {
	svc Service
	val *validator.Validator
}

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgInvalidOppgaveID  = "invalid oppgave id"
	msgMissingEnhet      = "missing header " + transport.EnhetHeader
	msgInvalidEnhet      = "invalid header " + transport.EnhetHeader
	msgMissingSykmelding = "sykmelding id is required"
)

// New creates a new case handler.
func New(svc Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetManuellOppgave returns one case.
// GET /api/v1/manuellOppgave/:oppgaveid
func (h *Handler) GetManuellOppgave(c *gin.Context) {
	oppgaveID, ok := parseOppgaveID(c)
	if !ok {
		return
	}
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}

	m, err := h.svc.GetByOppgaveID(c.Request.Context(), actor, oppgaveID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToManuellOppgaveResponse(m))
}

// ListOppgaver returns all open cases.
// GET /api/v1/oppgaver
func (h *Handler) ListOppgaver(c *gin.Context) {
	items, err := h.svc.ListUnfinished(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToUnfinishedResponses(items))
}

// GetOppgaveBySykmelding returns the task reference of a submission.
// GET /api/v1/oppgave/sykmelding/:sykmeldingId
func (h *Handler) GetOppgaveBySykmelding(c *gin.Context) {
	sykmeldingID := strings.TrimSpace(c.Param("sykmeldingId"))
	if sykmeldingID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingSykmelding, nil)
		return
	}
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}

	m, err := h.svc.GetBySykmeldingID(c.Request.Context(), actor, sykmeldingID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.OppgaveReferanseResponse{OppgaveID: m.OppgaveID, SykmeldingID: m.SykmeldingID})
}

// SykmeldingExists answers 200 when a case exists for the submission.
// GET /api/v1/sykmelding/:sykmeldingId
func (h *Handler) SykmeldingExists(c *gin.Context) {
	sykmeldingID := strings.TrimSpace(c.Param("sykmeldingId"))
	if sykmeldingID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingSykmelding, nil)
		return
	}

	exists, err := h.svc.SykmeldingExists(c.Request.Context(), sykmeldingID)
	if httpkit.HandleError(c, err) {
		return
	}
	if !exists {
		httpkit.Error(c, http.StatusNotFound, "sykmelding not found", nil)
		return
	}
	c.Status(http.StatusOK)
}

// Vurder records the caseworker's decision.
// POST /api/v1/vurderingmanuelloppgave/:oppgaveid
func (h *Handler) Vurder(c *gin.Context) {
	oppgaveID, ok := parseOppgaveID(c)
	if !ok {
		return
	}
	enhet := strings.TrimSpace(c.GetHeader(transport.EnhetHeader))
	if enhet == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingEnhet, nil)
		return
	}
	if err := h.val.Var(enhet, "enhet"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidEnhet, nil)
		return
	}

	var req transport.ResultatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}

	err := h.svc.Finalize(c.Request.Context(), service.FinalizeCommand{
		OppgaveID: oppgaveID,
		Decision:  req.ToDecision(),
		Enhet:     enhet,
		Actor:     actor,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// DeleteSykmelding removes a case (admin only).
// DELETE /api/v1/admin/sykmelding/:sykmeldingId
func (h *Handler) DeleteSykmelding(c *gin.Context) {
	sykmeldingID := strings.TrimSpace(c.Param("sykmeldingId"))
	if sykmeldingID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingSykmelding, nil)
		return
	}
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), actor, sykmeldingID)) {
		return
	}
	httpkit.NoContent(c)
}

func parseOppgaveID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("oppgaveid"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidOppgaveID, nil)
		return 0, false
	}
	return id, true
}

func mustGetActor(c *gin.Context) (service.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return service.Actor{}, false
	}
	return service.Actor{NavIdent: identity.NavIdent(), Token: identity.AccessToken()}, true
}

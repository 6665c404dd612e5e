// Package manuelloppgave provides the manual review case bounded context
// module: case lookup, caseworker decisions and admin deletion.
package manuelloppgave

import (
	"manuell_oppgave_backend/internal/events"
	apphttp "manuell_oppgave_backend/internal/http"
	"manuell_oppgave_backend/internal/manuelloppgave/handler"
	"manuell_oppgave_backend/internal/manuelloppgave/repository"
	"manuell_oppgave_backend/internal/manuelloppgave/service"
	"manuell_oppgave_backend/platform/logger"
	"manuell_oppgave_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the manual review bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the module with all its dependencies.
func NewModule(pool *pgxpool.Pool, oppgave service.OppgaveClient, pub service.Publisher, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, oppgave, pub, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "manuelloppgave"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository shared with ingestion and reconciliation.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts case routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/manuellOppgave/:oppgaveid", m.handler.GetManuellOppgave)
	ctx.Protected.GET("/oppgaver", m.handler.ListOppgaver)
	ctx.Protected.GET("/oppgave/sykmelding/:sykmeldingId", m.handler.GetOppgaveBySykmelding)
	ctx.Protected.GET("/sykmelding/:sykmeldingId", m.handler.SykmeldingExists)
	ctx.Protected.POST("/vurderingmanuelloppgave/:oppgaveid", m.handler.Vurder)

	ctx.Admin.DELETE("/sykmelding/:sykmeldingId", m.handler.DeleteSykmelding)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

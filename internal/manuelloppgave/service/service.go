// Package service holds the caseworker-facing operations on manual review
// cases: lookups, finalization of a decision and administrative deletion.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"manuell_oppgave_backend/internal/downstream"
	"manuell_oppgave_backend/internal/events"
	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/internal/manuelloppgave/repository"
	"manuell_oppgave_backend/internal/oppgave/client"
	"manuell_oppgave_backend/platform/apperr"
	"manuell_oppgave_backend/platform/logger"
)

// Actor used when an administrator removes an open case.
const (
	SystemEnhet    = "9999"
	SystemVeileder = "manuell-oppgave-backend"
)

const rejectionBeskrivelse = "Sykmeldingen er avvist på grunn av ugyldig tilbakedatering. Vurder oppfølging av sykmelder."

// OppgaveClient is the part of the task API this service needs.
type OppgaveClient interface {
	Create(ctx context.Context, req client.OpprettOppgave) (client.OpprettOppgaveResponse, error)
	Finalize(ctx context.Context, id int64, enhet, veileder string) (client.Oppgave, error)
}

// Publisher fans a finalized case out downstream.
type Publisher interface {
	SendReceipt(ctx context.Context, sykmeldingID string, apprec domain.Apprec) error
	SendSykmelding(ctx context.Context, sykmeldingID string, rs domain.ReceivedSykmelding, outcome domain.ValidationResult) error
	SendNotification(ctx context.Context, n downstream.Notification) error
}

// AccessChecker decides whether a caseworker may see a person's data.
type AccessChecker interface {
	HarTilgang(ctx context.Context, userToken, pasientFnr string) (bool, error)
}

// FinalizeReplayer schedules a later retry of the external finalize call.
type FinalizeReplayer interface {
	EnqueueFinalize(ctx context.Context, oppgaveID int64, enhet, veileder string) error
}

// Actor is the authenticated caseworker behind a request.
type Actor struct {
	NavIdent string
	Token    string
}

// FinalizeCommand carries a caseworker's decision for one task.
type FinalizeCommand struct {
	OppgaveID int64
	Decision  domain.Decision
	Enhet     string
	Actor     Actor
}

// Service provides the case operations.
type Service struct {
	repo     repository.Repository
	oppgave  OppgaveClient
	pub      Publisher
	bus      events.Bus
	log      *logger.Logger
	access   AccessChecker    // optional, nil allows every caseworker
	replayer FinalizeReplayer // optional, nil leaves recovery to reconciliation
	now      func() time.Time
}

// New creates the case service.
func New(repo repository.Repository, oppgave OppgaveClient, pub Publisher, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		oppgave: oppgave,
		pub:     pub,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// SetAccessChecker injects the access-control collaborator.
func (s *Service) SetAccessChecker(a AccessChecker) {
	s.access = a
}

// SetFinalizeReplayer injects the replay queue for failed external finalizes.
func (s *Service) SetFinalizeReplayer(r FinalizeReplayer) {
	s.replayer = r
}

// GetByOppgaveID returns the case for a task after checking the caller's
// access to the patient.
func (s *Service) GetByOppgaveID(ctx context.Context, actor Actor, oppgaveID int64) (domain.ManuellOppgave, error) {
	m, err := s.repo.GetByOppgaveID(ctx, oppgaveID)
	if err != nil {
		return domain.ManuellOppgave{}, err
	}
	if err := s.authorize(ctx, actor, m, "read"); err != nil {
		return domain.ManuellOppgave{}, err
	}
	return m, nil
}

// GetBySykmeldingID returns the case for a submission after checking the
// caller's access to the patient.
func (s *Service) GetBySykmeldingID(ctx context.Context, actor Actor, sykmeldingID string) (domain.ManuellOppgave, error) {
	m, err := s.repo.GetBySykmeldingID(ctx, sykmeldingID)
	if err != nil {
		return domain.ManuellOppgave{}, err
	}
	if err := s.authorize(ctx, actor, m, "read"); err != nil {
		return domain.ManuellOppgave{}, err
	}
	return m, nil
}

// ListUnfinished returns summaries of all open cases.
func (s *Service) ListUnfinished(ctx context.Context) ([]domain.UnfinishedOppgave, error) {
	return s.repo.ListUnfinished(ctx)
}

// SykmeldingExists reports whether a case exists for the submission.
func (s *Service) SykmeldingExists(ctx context.Context, sykmeldingID string) (bool, error) {
	return s.repo.Exists(ctx, sykmeldingID)
}

// Finalize records a caseworker's decision. The local record is finalized
// exactly once; a second call returns apperr.Conflict. External and
// downstream steps run after the local commit. A failing external finalize is
// reported to the caller and, when a replayer is set, queued for retry.
func (s *Service) Finalize(ctx context.Context, cmd FinalizeCommand) error {
	if err := cmd.Decision.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}

	m, err := s.repo.GetByOppgaveID(ctx, cmd.OppgaveID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, cmd.Actor, m, "finalize"); err != nil {
		return err
	}
	if m.Ferdigstilt {
		return apperr.Conflict("oppgave is already finalized")
	}

	log := s.log.WithContext(ctx).WithCase(m.SykmeldingID, m.OppgaveID)
	now := s.now()

	f := m.Finalize(cmd.Decision, now)
	if err := s.repo.Finalize(ctx, m.OppgaveID, f); err != nil {
		return err
	}
	log.Info("case finalized", "outcome", f.ValidationResult.Status, "enhet", cmd.Enhet)

	externalErr := s.finalizeExternal(ctx, m.OppgaveID, cmd.Enhet, cmd.Actor.NavIdent)
	if externalErr != nil {
		log.Error("external finalize failed", "error", externalErr)
		s.scheduleReplay(ctx, log, m.OppgaveID, cmd.Enhet, cmd.Actor.NavIdent)
	}

	followUp := false
	if cmd.Decision.IsRejection() {
		if err := s.createFollowUp(ctx, m, cmd, now); err != nil {
			log.Error("follow-up task could not be created", "error", err)
			if externalErr == nil {
				externalErr = err
			}
		} else {
			followUp = true
		}
	}

	s.fanOut(ctx, log, m, f, now)

	s.bus.Publish(ctx, events.OppgaveFerdigstilt{
		BaseEvent:    events.NewBaseEvent(),
		SykmeldingID: m.SykmeldingID,
		OppgaveID:    m.OppgaveID,
		Outcome:      string(f.ValidationResult.Status),
		Veileder:     cmd.Actor.NavIdent,
		Enhet:        cmd.Enhet,
		Oppfolging:   followUp,
	})

	return externalErr
}

// ReplayFinalize re-runs only the external fetch-then-patch for a task whose
// local record is already finalized. A task already FERDIGSTILT counts as done.
func (s *Service) ReplayFinalize(ctx context.Context, oppgaveID int64, enhet, veileder string) error {
	if err := s.finalizeExternal(ctx, oppgaveID, enhet, veileder); err != nil {
		return err
	}
	s.log.WithContext(ctx).WithCase("", oppgaveID).Info("external finalize replayed")
	return nil
}

// Delete removes a case. An open case has its external task finalized with
// the system actor first. A missing case is a no-op.
func (s *Service) Delete(ctx context.Context, actor Actor, sykmeldingID string) error {
	m, err := s.repo.GetBySykmeldingID(ctx, sykmeldingID)
	if apperr.Is(err, apperr.KindNotFound) {
		s.log.WithContext(ctx).WithCase(sykmeldingID, 0).Info("nothing to delete")
		return nil
	}
	if err != nil {
		return err
	}

	log := s.log.WithContext(ctx).WithCase(m.SykmeldingID, m.OppgaveID)
	log.AuditEvent("delete", actor.NavIdent, resource(m.OppgaveID), true)

	if !m.Ferdigstilt {
		if err := s.finalizeExternal(ctx, m.OppgaveID, SystemEnhet, SystemVeileder); err != nil {
			return fmt.Errorf("finalize oppgave %d before delete: %w", m.OppgaveID, err)
		}
	}

	if err := s.repo.Delete(ctx, m.SykmeldingID); err != nil {
		return err
	}
	log.Info("case deleted", "ferdigstilt", m.Ferdigstilt)

	s.bus.Publish(ctx, events.OppgaveSlettet{
		BaseEvent:    events.NewBaseEvent(),
		SykmeldingID: m.SykmeldingID,
		OppgaveID:    m.OppgaveID,
		Ferdigstilt:  m.Ferdigstilt,
	})
	return nil
}

func (s *Service) authorize(ctx context.Context, actor Actor, m domain.ManuellOppgave, action string) error {
	if s.access == nil {
		return nil
	}
	log := s.log.WithContext(ctx)
	ok, err := s.access.HarTilgang(ctx, actor.Token, m.PasientFnr)
	if err != nil {
		log.AuditEvent(action, actor.NavIdent, resource(m.OppgaveID), false)
		return err
	}
	log.AuditEvent(action, actor.NavIdent, resource(m.OppgaveID), ok)
	if !ok {
		return apperr.Unauthorized("veileder har ikke tilgang til oppgaven")
	}
	return nil
}

func (s *Service) finalizeExternal(ctx context.Context, oppgaveID int64, enhet, veileder string) error {
	_, err := s.oppgave.Finalize(ctx, oppgaveID, enhet, veileder)
	if err != nil && !client.AlreadyFinalized(err) {
		return err
	}
	return nil
}

func (s *Service) scheduleReplay(ctx context.Context, log *logger.Logger, oppgaveID int64, enhet, veileder string) {
	if s.replayer == nil {
		return
	}
	if err := s.replayer.EnqueueFinalize(ctx, oppgaveID, enhet, veileder); err != nil {
		log.Error("could not schedule finalize replay", "error", err)
		return
	}
	log.Info("finalize replay scheduled")
}

func (s *Service) createFollowUp(ctx context.Context, m domain.ManuellOppgave, cmd FinalizeCommand, now time.Time) error {
	beskrivelse := rejectionBeskrivelse
	if cmd.Decision.Merknad != nil && cmd.Decision.Merknad.Beskrivelse != nil && *cmd.Decision.Merknad.Beskrivelse != "" {
		beskrivelse = *cmd.Decision.Merknad.Beskrivelse
	}
	req := client.NewOppfolgingsoppgave(
		m.ReceivedSykmelding.PasientAktoerID,
		m.SykmeldingID,
		cmd.Enhet,
		cmd.Actor.NavIdent,
		beskrivelse,
		now,
		domain.Frist(now),
	)
	resp, err := s.oppgave.Create(ctx, req)
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).WithCase(m.SykmeldingID, m.OppgaveID).Info("follow-up task created", "oppfolging_oppgave_id", resp.ID)
	return nil
}

// fanOut is best-effort: failures are logged and never undo the commit.
func (s *Service) fanOut(ctx context.Context, log *logger.Logger, m domain.ManuellOppgave, f domain.Finalization, now time.Time) {
	if err := s.pub.SendSykmelding(ctx, m.SykmeldingID, f.ReceivedSykmelding, f.ValidationResult); err != nil {
		log.Error("forwarding sykmelding failed", "error", err)
	}

	if !m.SendtApprec {
		if err := s.pub.SendReceipt(ctx, m.SykmeldingID, f.Apprec); err != nil {
			log.Error("sending apprec failed", "error", err)
		} else if err := s.repo.MarkApprecSent(ctx, m.OppgaveID); err != nil {
			log.DatabaseError("mark apprec sent", err)
		}
	}

	err := s.pub.SendNotification(ctx, downstream.Notification{
		Type:         downstream.NotificationFerdigstilt,
		SykmeldingID: m.SykmeldingID,
		OppgaveID:    m.OppgaveID,
		Tidspunkt:    now,
	})
	if err != nil {
		log.Error("notification failed", "error", err)
	}
}

func resource(oppgaveID int64) string {
	return "oppgave/" + strconv.FormatInt(oppgaveID, 10)
}

// Package mottak ingests submissions that need manual review: it creates the
// external task, stores the joined case record and fans the case out.
package mottak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"manuell_oppgave_backend/internal/downstream"
	"manuell_oppgave_backend/internal/events"
	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/internal/manuelloppgave/repository"
	"manuell_oppgave_backend/internal/oppgave/client"
	"manuell_oppgave_backend/platform/apperr"
	"manuell_oppgave_backend/platform/logger"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrMissingSykmeldingID is returned for a message with no usable case id.
var ErrMissingSykmeldingID = errors.New("message has no sykmelding id")

// OppgaveCreator creates external tasks.
type OppgaveCreator interface {
	Create(ctx context.Context, req client.OpprettOppgave) (client.OpprettOppgaveResponse, error)
}

// Publisher fans a new case out downstream.
type Publisher interface {
	SendReceipt(ctx context.Context, sykmeldingID string, apprec domain.Apprec) error
	SendSykmelding(ctx context.Context, sykmeldingID string, rs domain.ReceivedSykmelding, outcome domain.ValidationResult) error
	SendNotification(ctx context.Context, n downstream.Notification) error
}

// Counter is incremented once per consumed message.
type Counter interface {
	Inc()
}

// Reconciler turns inbound case messages into stored cases.
type Reconciler struct {
	repo     repository.Repository
	oppgave  OppgaveCreator
	pub      Publisher
	bus      events.Bus
	log      *logger.Logger
	incoming Counter
	now      func() time.Time
}

// New creates the ingestion reconciler.
func New(repo repository.Repository, oppgave OppgaveCreator, pub Publisher, bus events.Bus, log *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		oppgave: oppgave,
		pub:     pub,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// SetIncomingCounter sets the counter bumped for every consumed record.
func (r *Reconciler) SetIncomingCounter(c Counter) {
	r.incoming = c
}

// Handle decodes a record from the inbound topic and ingests it.
func (r *Reconciler) Handle(ctx context.Context, rec *kgo.Record) error {
	if r.incoming != nil {
		r.incoming.Inc()
	}
	var msg domain.IncomingMessage
	if err := json.Unmarshal(rec.Value, &msg); err != nil {
		return fmt.Errorf("decode manuell oppgave message at offset %d: %w", rec.Offset, err)
	}
	return r.HandleSubmission(ctx, string(rec.Key), msg)
}

// HandleSubmission ingests one submission. It is idempotent per case id: a
// case already stored is logged and skipped. Any failure before the record
// is stored returns an error and leaves nothing behind, so redelivery starts
// over from the dedup check.
func (r *Reconciler) HandleSubmission(ctx context.Context, key string, msg domain.IncomingMessage) error {
	sykmeldingID := msg.Sykmelding.SykmeldingID()
	if sykmeldingID == "" {
		sykmeldingID = key
	}
	if sykmeldingID == "" {
		return ErrMissingSykmeldingID
	}

	log := r.log.WithContext(ctx).WithCase(sykmeldingID, 0)
	log = &logger.Logger{Logger: log.With("msg_id", msg.Sykmelding.MsgID, "nav_log_id", msg.Sykmelding.NavLogID)}

	exists, err := r.repo.Exists(ctx, sykmeldingID)
	if err != nil {
		return fmt.Errorf("check existing case: %w", err)
	}
	if exists {
		log.Warn("case already stored, skipping message")
		r.bus.Publish(ctx, events.OppgaveDuplikat{BaseEvent: events.NewBaseEvent(), SykmeldingID: sykmeldingID})
		return nil
	}

	now := r.now()
	rs := msg.Sykmelding.UnderBehandling()

	created, err := r.oppgave.Create(ctx, client.NewManuellOppgave(rs.PasientAktoerID, sykmeldingID, now, domain.Frist(now)))
	if err != nil {
		return fmt.Errorf("create oppgave: %w", err)
	}
	log = log.WithCase("", created.ID)
	log.Info("oppgave created")

	apprec := domain.NewApprec(rs, msg.ValidationResult, now)
	if msg.Receipt != nil {
		apprec = *msg.Receipt
	}

	original := msg.ValidationResult.Clone()
	m := domain.ManuellOppgave{
		SykmeldingID:                sykmeldingID,
		OppgaveID:                   created.ID,
		PasientFnr:                  rs.PersonNrPasient,
		ReceivedSykmelding:          rs,
		ValidationResult:            msg.ValidationResult,
		OpprinneligValidationResult: &original,
		Apprec:                      apprec,
		MottattDato:                 rs.MottattDato.Time,
	}
	if err := r.repo.Insert(ctx, m); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			// a concurrent delivery stored the case first
			log.Warn("case stored concurrently, oppgave is orphaned")
			return nil
		}
		return fmt.Errorf("store case: %w", err)
	}
	log.Info("case stored")

	r.fanOut(ctx, log, m, msg.Receipt != nil, now)

	r.bus.Publish(ctx, events.OppgaveOpprettet{
		BaseEvent:    events.NewBaseEvent(),
		SykmeldingID: sykmeldingID,
		OppgaveID:    created.ID,
	})
	return nil
}

// fanOut is best-effort: the stored record is the source of truth.
func (r *Reconciler) fanOut(ctx context.Context, log *logger.Logger, m domain.ManuellOppgave, sendReceipt bool, now time.Time) {
	if sendReceipt {
		if err := r.pub.SendReceipt(ctx, m.SykmeldingID, m.Apprec); err != nil {
			log.Error("sending apprec failed", "error", err)
		} else if err := r.repo.MarkApprecSent(ctx, m.OppgaveID); err != nil {
			log.DatabaseError("mark apprec sent", err)
		}
	}

	if err := r.pub.SendSykmelding(ctx, m.SykmeldingID, m.ReceivedSykmelding, m.ValidationResult); err != nil {
		log.Error("forwarding sykmelding failed", "error", err)
	}

	err := r.pub.SendNotification(ctx, downstream.Notification{
		Type:         downstream.NotificationOpprettet,
		SykmeldingID: m.SykmeldingID,
		OppgaveID:    m.OppgaveID,
		Tidspunkt:    now,
	})
	if err != nil {
		log.Error("notification failed", "error", err)
	}
}

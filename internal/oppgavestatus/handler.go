// Package oppgavestatus keeps the locally stored external status of each
// task in line with the task system, from its change events and by polling
// tasks whose status has not been observed yet.
package oppgavestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"manuell_oppgave_backend/internal/events"
	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/platform/logger"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Sources of a status update.
const (
	SourceEvent = "event"
	SourcePoll  = "poll"
)

// StatusWriter is the store access used for reconciliation. Only the status
// columns are ever written.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, oppgaveID int64, status domain.ExternalStatus, at time.Time) (bool, error)
	ListWithUnknownStatus(ctx context.Context, exclude []int64, limit int) ([]int64, error)
}

// hendelse is a task-change event.
type hendelse struct {
	Hendelse struct {
		Hendelsestype string               `json:"hendelsestype"`
		Tidspunkt     domain.LocalDateTime `json:"tidspunkt"`
	} `json:"hendelse"`
	Oppgave struct {
		OppgaveID int64 `json:"oppgaveId"`
	} `json:"oppgave"`
}

// EventHandler applies task-change events to stored cases.
type EventHandler struct {
	repo StatusWriter
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

// NewEventHandler creates the event path handler.
func NewEventHandler(repo StatusWriter, bus events.Bus, log *logger.Logger) *EventHandler {
	return &EventHandler{repo: repo, bus: bus, log: log, now: time.Now}
}

// Handle decodes and applies one task-change record. Events for tasks this
// service does not track and unknown event types are ignored.
func (h *EventHandler) Handle(ctx context.Context, rec *kgo.Record) error {
	var ev hendelse
	if err := json.Unmarshal(rec.Value, &ev); err != nil {
		return fmt.Errorf("decode oppgavehendelse at offset %d: %w", rec.Offset, err)
	}

	log := h.log.WithContext(ctx).WithCase("", ev.Oppgave.OppgaveID)
	status, ok := domain.StatusFromHendelse(ev.Hendelse.Hendelsestype)
	if !ok {
		log.Debug("ignoring oppgavehendelse", "hendelsestype", ev.Hendelse.Hendelsestype)
		return nil
	}

	at := ev.Hendelse.Tidspunkt.Time
	if at.IsZero() {
		at = domain.NewLocalDateTime(h.now()).Time
	}

	updated, err := h.repo.UpdateStatus(ctx, ev.Oppgave.OppgaveID, status, at)
	if err != nil {
		return fmt.Errorf("update status from event: %w", err)
	}
	if !updated {
		return nil
	}

	log.Info("oppgave status updated", "status", status, "source", SourceEvent)
	h.bus.Publish(ctx, events.OppgaveStatusOppdatert{
		BaseEvent: events.NewBaseEvent(),
		OppgaveID: ev.Oppgave.OppgaveID,
		Status:    string(status),
		Source:    SourceEvent,
	})
	return nil
}

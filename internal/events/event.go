// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"manuell_oppgave_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Manual Review Case Events
// =============================================================================

// OppgaveOpprettet is published when a case has been stored with its task.
type OppgaveOpprettet struct {
	BaseEvent
	SykmeldingID string `json:"sykmeldingId"`
	OppgaveID    int64  `json:"oppgaveId"`
}

func (e OppgaveOpprettet) EventName() string { return "manuelloppgave.opprettet" }

// OppgaveDuplikat is published when an already stored case is received again.
type OppgaveDuplikat struct {
	BaseEvent
	SykmeldingID string `json:"sykmeldingId"`
}

func (e OppgaveDuplikat) EventName() string { return "manuelloppgave.duplikat" }

// OppgaveFerdigstilt is published when a caseworker's decision is stored.
type OppgaveFerdigstilt struct {
	BaseEvent
	SykmeldingID string `json:"sykmeldingId"`
	OppgaveID    int64  `json:"oppgaveId"`
	Outcome      string `json:"outcome"`
	Veileder     string `json:"veileder"`
	Enhet        string `json:"enhet"`
	Oppfolging   bool   `json:"oppfolging"`
}

func (e OppgaveFerdigstilt) EventName() string { return "manuelloppgave.ferdigstilt" }

// OppgaveSlettet is published when an administrator removes a case.
type OppgaveSlettet struct {
	BaseEvent
	SykmeldingID string `json:"sykmeldingId"`
	OppgaveID    int64  `json:"oppgaveId"`
	Ferdigstilt  bool   `json:"ferdigstilt"`
}

func (e OppgaveSlettet) EventName() string { return "manuelloppgave.slettet" }

// OppgaveStatusOppdatert is published when the external status of a task is
// written, by either the event path or the poll path.
type OppgaveStatusOppdatert struct {
	BaseEvent
	OppgaveID int64  `json:"oppgaveId"`
	Status    string `json:"status"`
	Source    string `json:"source"`
}

func (e OppgaveStatusOppdatert) EventName() string { return "oppgave.status.oppdatert" }

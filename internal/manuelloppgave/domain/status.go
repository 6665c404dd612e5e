package domain

// ExternalStatus mirrors the external task system's view of a task.
type ExternalStatus string

const (
	ExternalOpen          ExternalStatus = "OPEN"
	ExternalInProgress    ExternalStatus = "IN_PROGRESS"
	ExternalFinalized     ExternalStatus = "FINALIZED"
	ExternalMisregistered ExternalStatus = "MISREGISTERED"
)

// Task-change event types.
const (
	HendelseCreated       = "CREATED"
	HendelseChanged       = "CHANGED"
	HendelseFinalized     = "FINALIZED"
	HendelseMisregistered = "MISREGISTERED"
)

// Task API status vocabulary.
const (
	OppgaveOpprettet       = "OPPRETTET"
	OppgaveAapnet          = "AAPNET"
	OppgaveUnderBehandling = "UNDER_BEHANDLING"
	OppgaveFerdigstilt     = "FERDIGSTILT"
	OppgaveFeilregistrert  = "FEILREGISTRERT"
)

var statusByHendelse = map[string]ExternalStatus{
	HendelseCreated:       ExternalOpen,
	HendelseChanged:       ExternalInProgress,
	HendelseFinalized:     ExternalFinalized,
	HendelseMisregistered: ExternalMisregistered,
}

var statusByOppgaveStatus = map[string]ExternalStatus{
	OppgaveOpprettet:       ExternalOpen,
	OppgaveAapnet:          ExternalOpen,
	OppgaveUnderBehandling: ExternalInProgress,
	OppgaveFerdigstilt:     ExternalFinalized,
	OppgaveFeilregistrert:  ExternalMisregistered,
}

// StatusFromHendelse maps a task-change event type.
func StatusFromHendelse(hendelsestype string) (ExternalStatus, bool) {
	s, ok := statusByHendelse[hendelsestype]
	return s, ok
}

// StatusFromOppgave maps a task API status.
func StatusFromOppgave(status string) (ExternalStatus, bool) {
	s, ok := statusByOppgaveStatus[status]
	return s, ok
}

// Valid reports whether s is one of the known statuses.
func (s ExternalStatus) Valid() bool {
	switch s {
	case ExternalOpen, ExternalInProgress, ExternalFinalized, ExternalMisregistered:
		return true
	}
	return false
}

package client

import "time"

const dateLayout = "2006-01-02"

// Default routing values for manual review tasks.
const (
	Tema                   = "SYM"
	Oppgavetype            = "BEH_EL_SYM"
	Behandlingstype        = "ae0239"
	BehandlesAvApplikasjon = "SMM"
	PrioritetHoy           = "HOY"
	PrioritetNorm          = "NORM"
	StatusFerdigstilt      = "FERDIGSTILT"
)

// OpprettOppgave is the body of a create-task request.
type OpprettOppgave struct {
	TildeltEnhetsnr        *string `json:"tildeltEnhetsnr,omitempty"`
	OpprettetAvEnhetsnr    *string `json:"opprettetAvEnhetsnr,omitempty"`
	TilordnetRessurs       *string `json:"tilordnetRessurs,omitempty"`
	AktoerID               string  `json:"aktoerId"`
	JournalpostID          *string `json:"journalpostId,omitempty"`
	BehandlesAvApplikasjon *string `json:"behandlesAvApplikasjon,omitempty"`
	SaksreferanseID        *string `json:"saksreferanse,omitempty"`
	Beskrivelse            string  `json:"beskrivelse"`
	Tema                   string  `json:"tema"`
	Oppgavetype            string  `json:"oppgavetype"`
	Behandlingstype        string  `json:"behandlingstype"`
	AktivDato              string  `json:"aktivDato"`
	FristFerdigstillelse   string  `json:"fristFerdigstillelse"`
	Prioritet              string  `json:"prioritet"`
}

// OpprettOppgaveResponse is returned for a created task.
type OpprettOppgaveResponse struct {
	ID      int64 `json:"id"`
	Versjon int   `json:"versjon"`
}

// Oppgave is the task as returned by fetch and patch.
type Oppgave struct {
	ID              int64      `json:"id"`
	Versjon         int        `json:"versjon"`
	Status          string     `json:"status"`
	TildeltEnhetsnr *string    `json:"tildeltEnhetsnr,omitempty"`
	MappeID         *int64     `json:"mappeId,omitempty"`
	EndretTidspunkt *time.Time `json:"endretTidspunkt,omitempty"`
}

// FerdigstillOppgave is the body of a patch-finalize request.
type FerdigstillOppgave struct {
	Versjon          int    `json:"versjon"`
	ID               int64  `json:"id"`
	Status           string `json:"status"`
	TildeltEnhetsnr  string `json:"tildeltEnhetsnr"`
	TilordnetRessurs string `json:"tilordnetRessurs"`
	MappeID          *int64 `json:"mappeId"`
}

// NewManuellOppgave builds the create request for a new case.
func NewManuellOppgave(aktoerID, sykmeldingID string, now, frist time.Time) OpprettOppgave {
	app := BehandlesAvApplikasjon
	ref := sykmeldingID
	return OpprettOppgave{
		AktoerID:               aktoerID,
		BehandlesAvApplikasjon: &app,
		SaksreferanseID:        &ref,
		Beskrivelse:            "Manuell vurdering av sykmelding",
		Tema:                   Tema,
		Oppgavetype:            Oppgavetype,
		Behandlingstype:        Behandlingstype,
		AktivDato:              now.Format(dateLayout),
		FristFerdigstillelse:   frist.Format(dateLayout),
		Prioritet:              PrioritetHoy,
	}
}

// NewOppfolgingsoppgave builds the create request for a follow-up task
// routed to a unit and caseworker.
func NewOppfolgingsoppgave(aktoerID, sykmeldingID, enhet, veileder, beskrivelse string, now, frist time.Time) OpprettOppgave {
	ref := sykmeldingID
	return OpprettOppgave{
		TildeltEnhetsnr:      &enhet,
		OpprettetAvEnhetsnr:  &enhet,
		TilordnetRessurs:     &veileder,
		AktoerID:             aktoerID,
		SaksreferanseID:      &ref,
		Beskrivelse:          beskrivelse,
		Tema:                 Tema,
		Oppgavetype:          Oppgavetype,
		Behandlingstype:      Behandlingstype,
		AktivDato:            now.Format(dateLayout),
		FristFerdigstillelse: frist.Format(dateLayout),
		Prioritet:            PrioritetNorm,
	}
}

// Ferdigstill builds the finalize patch for the fetched task.
func Ferdigstill(current Oppgave, enhet, veileder string) FerdigstillOppgave {
	return FerdigstillOppgave{
		Versjon:          current.Versjon,
		ID:               current.ID,
		Status:           StatusFerdigstilt,
		TildeltEnhetsnr:  enhet,
		TilordnetRessurs: veileder,
		MappeID:          nil,
	}
}

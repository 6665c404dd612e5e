package transport

import (
	"time"

	"manuell_oppgave_backend/internal/manuelloppgave/domain"
)

// EnhetHeader carries the caseworker's unit on decision requests.
const EnhetHeader = "X-Nav-Enhet"

// MerknadRequest is an annotation attached to a decision.
type MerknadRequest struct {
	Type        string  `json:"type" validate:"required,oneof=UGYLDIG_TILBAKEDATERING TILBAKEDATERING_KREVER_FLERE_OPPLYSNINGER DELVIS_GODKJENT"`
	Beskrivelse *string `json:"beskrivelse,omitempty" validate:"omitempty,max=2000"`
}

// ResultatRequest is the caseworker's decision on a case.
type ResultatRequest struct {
	Status  string          `json:"status" validate:"required,oneof=GODKJENT GODKJENT_MED_MERKNAD"`
	Merknad *MerknadRequest `json:"merknad,omitempty" validate:"required_if=Status GODKJENT_MED_MERKNAD"`
}

// ToDecision converts the request to a domain decision.
func (r ResultatRequest) ToDecision() domain.Decision {
	d := domain.Decision{Status: domain.DecisionStatus(r.Status)}
	if r.Merknad != nil {
		d.Merknad = &domain.Merknad{Type: r.Merknad.Type, Beskrivelse: r.Merknad.Beskrivelse}
	}
	return d
}

// ManuellOppgaveResponse is a case as shown to the caseworker.
type ManuellOppgaveResponse struct {
	OppgaveID        int64                     `json:"oppgaveid"`
	SykmeldingID     string                    `json:"sykmeldingId"`
	Sykmelding       domain.ReceivedSykmelding `json:"sykmelding"`
	PersonNrPasient  string                    `json:"personNrPasient"`
	MottattDato      domain.LocalDateTime      `json:"mottattDato"`
	ValidationResult domain.ValidationResult   `json:"validationResult"`
	Ferdigstilt      bool                      `json:"ferdigstilt"`
	Status           *domain.ExternalStatus    `json:"status,omitempty"`
	StatusTimestamp  *time.Time                `json:"statusTimestamp,omitempty"`
}

// UnfinishedOppgaveResponse summarises an open case.
type UnfinishedOppgaveResponse struct {
	OppgaveID    int64                  `json:"oppgaveId"`
	SykmeldingID string                 `json:"sykmeldingId"`
	MottattDato  domain.LocalDateTime   `json:"mottattDato"`
	Status       *domain.ExternalStatus `json:"status,omitempty"`
}

// OppgaveReferanseResponse links a submission to its task.
type OppgaveReferanseResponse struct {
	OppgaveID    int64  `json:"oppgaveId"`
	SykmeldingID string `json:"sykmeldingId"`
}

// ToManuellOppgaveResponse maps a stored case.
func ToManuellOppgaveResponse(m domain.ManuellOppgave) ManuellOppgaveResponse {
	return ManuellOppgaveResponse{
		OppgaveID:        m.OppgaveID,
		SykmeldingID:     m.SykmeldingID,
		Sykmelding:       m.ReceivedSykmelding,
		PersonNrPasient:  m.PasientFnr,
		MottattDato:      domain.NewLocalDateTime(m.MottattDato),
		ValidationResult: m.ValidationResult,
		Ferdigstilt:      m.Ferdigstilt,
		Status:           m.Status,
		StatusTimestamp:  m.StatusTimestamp,
	}
}

// ToUnfinishedResponses maps open case summaries.
func ToUnfinishedResponses(items []domain.UnfinishedOppgave) []UnfinishedOppgaveResponse {
	out := make([]UnfinishedOppgaveResponse, 0, len(items))
	for _, item := range items {
		out = append(out, UnfinishedOppgaveResponse{
			OppgaveID:    item.OppgaveID,
			SykmeldingID: item.SykmeldingID,
			MottattDato:  domain.NewLocalDateTime(item.MottattDato),
			Status:       item.Status,
		})
	}
	return out
}

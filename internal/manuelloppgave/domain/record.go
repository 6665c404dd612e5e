package domain

import "time"

// ManuellOppgave is the joined record for one case: the submission, its
// validation outcome, the receipt and the external task that tracks it.
type ManuellOppgave struct {
	SykmeldingID                string
	OppgaveID                   int64
	PasientFnr                  string
	ReceivedSykmelding          ReceivedSykmelding
	ValidationResult            ValidationResult
	OpprinneligValidationResult *ValidationResult
	Apprec                      Apprec
	Ferdigstilt                 bool
	SendtApprec                 bool
	Status                      *ExternalStatus
	StatusTimestamp             *time.Time
	MottattDato                 time.Time
	CreatedAt                   time.Time
}

// Finalization is the terminal mutation applied to a record.
type Finalization struct {
	ReceivedSykmelding          ReceivedSykmelding
	ValidationResult            ValidationResult
	OpprinneligValidationResult ValidationResult
	Apprec                      Apprec
}

// Finalize computes the terminal state of m for decision. The original
// outcome is taken from m when present and otherwise backfilled from the
// current outcome.
func (m ManuellOppgave) Finalize(d Decision, now time.Time) Finalization {
	original := m.ValidationResult.Clone()
	if m.OpprinneligValidationResult != nil {
		original = m.OpprinneligValidationResult.Clone()
	}

	rs := m.ReceivedSykmelding.WithoutMerknad(MerknadUnderBehandling)
	if d.Merknad != nil {
		rs = rs.WithMerknad(*d.Merknad)
	}

	outcome := d.Outcome()
	return Finalization{
		ReceivedSykmelding:          rs,
		ValidationResult:            outcome,
		OpprinneligValidationResult: original,
		Apprec:                      NewApprec(rs, outcome, now),
	}
}

// UnfinishedOppgave summarises an open case for the task list.
type UnfinishedOppgave struct {
	OppgaveID    int64
	SykmeldingID string
	MottattDato  time.Time
	Status       *ExternalStatus
}

// IncomingMessage is the value of a case message on the inbound topic.
type IncomingMessage struct {
	Sykmelding       ReceivedSykmelding `json:"sykmelding"`
	ValidationResult ValidationResult   `json:"validationResult"`
	Receipt          *Apprec            `json:"receipt"`
}

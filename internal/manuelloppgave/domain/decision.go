package domain

import "errors"

// DecisionStatus is the caseworker's verdict.
type DecisionStatus string

const (
	DecisionGodkjent           DecisionStatus = "GODKJENT"
	DecisionGodkjentMedMerknad DecisionStatus = "GODKJENT_MED_MERKNAD"
)

// Merknad types a caseworker may attach.
const (
	MerknadUgyldigTilbakedatering            = "UGYLDIG_TILBAKEDATERING"
	MerknadTilbakedateringKreverOpplysninger = "TILBAKEDATERING_KREVER_FLERE_OPPLYSNINGER"
	MerknadDelvisGodkjent                    = "DELVIS_GODKJENT"
)

// MerknadUnderBehandling marks a submission that awaits a decision. It is set
// on ingestion and removed on finalization.
const MerknadUnderBehandling = "UNDER_BEHANDLING"

var knownMerknader = map[string]bool{
	MerknadUgyldigTilbakedatering:            true,
	MerknadTilbakedateringKreverOpplysninger: true,
	MerknadDelvisGodkjent:                    true,
}

// Decision is the caseworker's recorded verdict on a case.
type Decision struct {
	Status  DecisionStatus `json:"status"`
	Merknad *Merknad       `json:"merknad,omitempty"`
}

var (
	ErrUnknownDecision = errors.New("unknown decision status")
	ErrMissingMerknad  = errors.New("GODKJENT_MED_MERKNAD requires a merknad")
	ErrUnknownMerknad  = errors.New("unknown merknad type")
)

// Validate checks that the decision is well formed.
func (d Decision) Validate() error {
	switch d.Status {
	case DecisionGodkjent:
	case DecisionGodkjentMedMerknad:
		if d.Merknad == nil {
			return ErrMissingMerknad
		}
	default:
		return ErrUnknownDecision
	}
	if d.Merknad != nil && !knownMerknader[d.Merknad.Type] {
		return ErrUnknownMerknad
	}
	return nil
}

// IsRejection reports whether the decision carries the rejection annotation.
func (d Decision) IsRejection() bool {
	return d.Merknad != nil && d.Merknad.Type == MerknadUgyldigTilbakedatering
}

// Outcome is the validation result recorded for the decision.
func (d Decision) Outcome() ValidationResult {
	if d.IsRejection() {
		return RejectedBackdating()
	}
	return Approved()
}

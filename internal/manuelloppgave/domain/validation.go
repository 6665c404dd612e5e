package domain

// Status of a validation outcome.
type Status string

const (
	StatusOK               Status = "OK"
	StatusManualProcessing Status = "MANUAL_PROCESSING"
	StatusInvalid          Status = "INVALID"
)

// RuleInfo is one rule hit recorded against a submission.
type RuleInfo struct {
	RuleName         string `json:"ruleName"`
	MessageForSender string `json:"messageForSender"`
	MessageForUser   string `json:"messageForUser"`
	RuleStatus       Status `json:"ruleStatus"`
}

// ValidationResult is the assessment of a submission.
type ValidationResult struct {
	Status   Status     `json:"status"`
	RuleHits []RuleInfo `json:"ruleHits"`
}

// Approved is the outcome recorded when a caseworker approves a case.
func Approved() ValidationResult {
	return ValidationResult{Status: StatusOK, RuleHits: []RuleInfo{}}
}

// RejectedBackdating is the outcome recorded when a caseworker rejects a
// case for unjustified backdating.
func RejectedBackdating() ValidationResult {
	return ValidationResult{
		Status: StatusInvalid,
		RuleHits: []RuleInfo{{
			RuleName:         MerknadUgyldigTilbakedatering,
			MessageForSender: "Sykmeldingen er tilbakedatert uten tilstrekkelig begrunnelse fra den som sykmeldte.",
			MessageForUser:   "Sykmeldingen din er tilbakedatert uten god nok begrunnelse.",
			RuleStatus:       StatusInvalid,
		}},
	}
}

// Clone returns a deep copy.
func (v ValidationResult) Clone() ValidationResult {
	out := ValidationResult{Status: v.Status, RuleHits: make([]RuleInfo, len(v.RuleHits))}
	copy(out.RuleHits, v.RuleHits)
	return out
}

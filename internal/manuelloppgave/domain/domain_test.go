package domain

import (
	"encoding/json"
	"testing"
	"time"
)

const sampleSykmelding = `{
	"sykmelding": {"id": "sm-1", "perioder": [{"fom": "2024-01-01", "tom": "2024-01-14"}]},
	"personNrPasient": "12345678910",
	"pasientAktoerId": "1000012345678",
	"personNrLege": "10987654321",
	"navLogId": "log-1",
	"msgId": "msg-1",
	"legekontorOrgNr": "123456789",
	"legekontorHerId": null,
	"legekontorOrgName": "Legesenteret",
	"mottattDato": "2024-01-02T10:11:12",
	"tssid": null,
	"merknader": null,
	"fellesformat": "<xml/>",
	"rulesetVersion": "3"
}`

func TestReceivedSykmeldingPreservesUnknownFields(t *testing.T) {
	var rs ReceivedSykmelding
	if err := json.Unmarshal([]byte(sampleSykmelding), &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := rs.SykmeldingID(); got != "sm-1" {
		t.Fatalf("expected sykmelding id sm-1, got %q", got)
	}
	want := time.Date(2024, 1, 2, 10, 11, 12, 0, time.UTC)
	if !rs.MottattDato.Equal(want) {
		t.Fatalf("expected mottattDato %v, got %v", want, rs.MottattDato)
	}

	out, err := json.Marshal(rs.WithMerknad(Merknad{Type: MerknadDelvisGodkjent}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if string(doc["fellesformat"]) != `"<xml/>"` || string(doc["rulesetVersion"]) != `"3"` {
		t.Fatalf("unknown fields not preserved: %s", out)
	}
	if string(doc["mottattDato"]) != `"2024-01-02T10:11:12"` {
		t.Fatalf("mottattDato not preserved: %s", doc["mottattDato"])
	}

	var merknader []Merknad
	if err := json.Unmarshal(doc["merknader"], &merknader); err != nil || len(merknader) != 1 {
		t.Fatalf("expected one merknad, got %s (err %v)", doc["merknader"], err)
	}
	if rs.Merknader != nil {
		t.Fatal("WithMerknad must not mutate the receiver")
	}
}

func TestDecisionValidate(t *testing.T) {
	cases := []struct {
		name string
		d    Decision
		err  error
	}{
		{"godkjent", Decision{Status: DecisionGodkjent}, nil},
		{"med merknad", Decision{Status: DecisionGodkjentMedMerknad, Merknad: &Merknad{Type: MerknadDelvisGodkjent}}, nil},
		{"med merknad missing", Decision{Status: DecisionGodkjentMedMerknad}, ErrMissingMerknad},
		{"unknown status", Decision{Status: "AVVIST"}, ErrUnknownDecision},
		{"unknown merknad", Decision{Status: DecisionGodkjentMedMerknad, Merknad: &Merknad{Type: "X"}}, ErrUnknownMerknad},
	}
	for _, tc := range cases {
		if err := tc.d.Validate(); err != tc.err {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestFinalizeApprovedKeepsOriginalOutcome(t *testing.T) {
	var rs ReceivedSykmelding
	if err := json.Unmarshal([]byte(sampleSykmelding), &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	hit := RuleInfo{RuleName: "TILBAKEDATERT", RuleStatus: StatusManualProcessing}
	m := ManuellOppgave{
		ReceivedSykmelding: rs,
		ValidationResult:   ValidationResult{Status: StatusManualProcessing, RuleHits: []RuleInfo{hit}},
	}

	f := m.Finalize(Decision{Status: DecisionGodkjent}, time.Now())

	if f.ValidationResult.Status != StatusOK || len(f.ValidationResult.RuleHits) != 0 {
		t.Fatalf("expected OK with no rule hits, got %+v", f.ValidationResult)
	}
	if f.OpprinneligValidationResult.Status != StatusManualProcessing || f.OpprinneligValidationResult.RuleHits[0] != hit {
		t.Fatalf("original outcome not backfilled: %+v", f.OpprinneligValidationResult)
	}
	if f.Apprec.ApprecStatus != ApprecOK || f.Apprec.Ediloggid != "log-1" {
		t.Fatalf("unexpected apprec %+v", f.Apprec)
	}
}

func TestFinalizeRejectionProducesAvvistApprec(t *testing.T) {
	original := ValidationResult{Status: StatusManualProcessing, RuleHits: []RuleInfo{{RuleName: "A"}}}
	m := ManuellOppgave{
		ValidationResult:            ValidationResult{Status: StatusManualProcessing},
		OpprinneligValidationResult: &original,
	}
	d := Decision{Status: DecisionGodkjentMedMerknad, Merknad: &Merknad{Type: MerknadUgyldigTilbakedatering}}

	f := m.Finalize(d, time.Now())

	if f.ValidationResult.Status != StatusInvalid {
		t.Fatalf("expected INVALID, got %s", f.ValidationResult.Status)
	}
	if f.Apprec.ApprecStatus != ApprecAvvist || f.Apprec.TekstTilSender == nil {
		t.Fatalf("expected AVVIST apprec with text, got %+v", f.Apprec)
	}
	if f.OpprinneligValidationResult.RuleHits[0].RuleName != "A" {
		t.Fatal("existing original outcome must be kept")
	}
	if len(f.ReceivedSykmelding.Merknader) != 1 {
		t.Fatalf("expected merknad on submission, got %+v", f.ReceivedSykmelding.Merknader)
	}
}

func TestStatusMappers(t *testing.T) {
	if s, ok := StatusFromHendelse(HendelseChanged); !ok || s != ExternalInProgress {
		t.Fatalf("CHANGED -> %s, %v", s, ok)
	}
	if _, ok := StatusFromHendelse("UNKNOWN"); ok {
		t.Fatal("unknown hendelse must not map")
	}
	if s, ok := StatusFromOppgave(OppgaveAapnet); !ok || s != ExternalOpen {
		t.Fatalf("AAPNET -> %s, %v", s, ok)
	}
	if s, ok := StatusFromOppgave(OppgaveFeilregistrert); !ok || s != ExternalMisregistered {
		t.Fatalf("FEILREGISTRERT -> %s, %v", s, ok)
	}
}

func TestFristSkipsWeekend(t *testing.T) {
	cases := map[time.Time]time.Weekday{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC): time.Friday,  // Monday + 4
		time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC): time.Monday,  // Wednesday + 4 = Sunday
		time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC): time.Monday,  // Tuesday + 4 = Saturday
		time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC): time.Monday,  // Thursday + 4
	}
	for day, want := range cases {
		if got := Frist(day).Weekday(); got != want {
			t.Fatalf("Frist(%s) weekday = %s, want %s", day.Format(time.DateOnly), got, want)
		}
	}
}

func TestUnderBehandlingIsReplacedOnFinalize(t *testing.T) {
	m := ManuellOppgave{ReceivedSykmelding: ReceivedSykmelding{}.UnderBehandling().UnderBehandling()}
	if len(m.ReceivedSykmelding.Merknader) != 1 {
		t.Fatalf("expected a single UNDER_BEHANDLING merknad, got %+v", m.ReceivedSykmelding.Merknader)
	}

	f := m.Finalize(Decision{Status: DecisionGodkjent}, time.Now())
	if len(f.ReceivedSykmelding.Merknader) != 0 {
		t.Fatalf("expected UNDER_BEHANDLING removed, got %+v", f.ReceivedSykmelding.Merknader)
	}
}

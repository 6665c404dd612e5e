// Package domain provides the core types and rules for manually reviewed
// sick-leave cases.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const localDateTimeLayout = "2006-01-02T15:04:05.999999999"

// LocalDateTime is a wall-clock timestamp without zone, as sent by the
// submitting systems. It is held in UTC so the wall clock survives storage
// in a TIMESTAMP column unchanged.
type LocalDateTime struct {
	time.Time
}

// NewLocalDateTime drops the zone of t, keeping its wall clock.
func NewLocalDateTime(t time.Time) LocalDateTime {
	return LocalDateTime{time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

func (l LocalDateTime) MarshalJSON() ([]byte, error) {
	if l.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(l.Format(localDateTimeLayout))
}

func (l *LocalDateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		l.Time = time.Time{}
		return nil
	}
	t, err := time.ParseInLocation(localDateTimeLayout, s, time.UTC)
	if err != nil {
		// tolerate a zoned timestamp and keep its wall clock
		zoned, zerr := time.Parse(time.RFC3339Nano, s)
		if zerr != nil {
			return fmt.Errorf("parse local date-time %q: %w", s, err)
		}
		t = NewLocalDateTime(zoned).Time
	}
	l.Time = t
	return nil
}

// Merknad is an annotation attached to a submission during processing.
type Merknad struct {
	Type        string  `json:"type"`
	Beskrivelse *string `json:"beskrivelse"`
}

// ReceivedSykmelding is a typed projection over the submission payload. Only
// the fields this service reads or mutates are typed; everything else in the
// document is carried through untouched.
type ReceivedSykmelding struct {
	Sykmelding        json.RawMessage `json:"sykmelding"`
	PersonNrPasient   string          `json:"personNrPasient"`
	PasientAktoerID   string          `json:"pasientAktoerId,omitempty"`
	PersonNrLege      string          `json:"personNrLege"`
	NavLogID          string          `json:"navLogId"`
	MsgID             string          `json:"msgId"`
	LegekontorOrgNr   *string         `json:"legekontorOrgNr"`
	LegekontorHerID   *string         `json:"legekontorHerId"`
	LegekontorOrgName string          `json:"legekontorOrgName"`
	MottattDato       LocalDateTime   `json:"mottattDato"`
	Tssid             *string         `json:"tssid"`
	Merknader         []Merknad       `json:"merknader"`

	extra map[string]json.RawMessage
}

// receivedSykmeldingFields is the alias used to avoid recursion in the
// custom JSON methods.
type receivedSykmeldingFields ReceivedSykmelding

var knownSykmeldingKeys = []string{
	"sykmelding", "personNrPasient", "pasientAktoerId", "personNrLege", "navLogId", "msgId",
	"legekontorOrgNr", "legekontorHerId", "legekontorOrgName", "mottattDato", "tssid", "merknader",
}

func (r *ReceivedSykmelding) UnmarshalJSON(data []byte) error {
	var fields receivedSykmeldingFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownSykmeldingKeys {
		delete(all, k)
	}
	*r = ReceivedSykmelding(fields)
	if len(all) > 0 {
		r.extra = all
	}
	return nil
}

func (r ReceivedSykmelding) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(receivedSykmeldingFields(r))
	if err != nil {
		return nil, err
	}
	if len(r.extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(r.extra)+len(knownSykmeldingKeys))
	for k, v := range r.extra {
		merged[k] = v
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(known, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// SykmeldingID returns the id of the nested submission document.
func (r ReceivedSykmelding) SykmeldingID() string {
	if len(r.Sykmelding) == 0 {
		return ""
	}
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(r.Sykmelding, &head); err != nil {
		return ""
	}
	return head.ID
}

// WithMerknad returns a copy of r with m appended to the annotation list.
func (r ReceivedSykmelding) WithMerknad(m Merknad) ReceivedSykmelding {
	out := r
	out.Merknader = append(append([]Merknad(nil), r.Merknader...), m)
	return out
}

// WithoutMerknad returns a copy of r with every annotation of type removed.
func (r ReceivedSykmelding) WithoutMerknad(merknadType string) ReceivedSykmelding {
	out := r
	if r.Merknader == nil {
		return out
	}
	out.Merknader = make([]Merknad, 0, len(r.Merknader))
	for _, m := range r.Merknader {
		if m.Type != merknadType {
			out.Merknader = append(out.Merknader, m)
		}
	}
	return out
}

// UnderBehandling returns a copy of r annotated as awaiting manual review.
func (r ReceivedSykmelding) UnderBehandling() ReceivedSykmelding {
	beskrivelse := "Sykmeldingen er til manuell behandling"
	return r.WithoutMerknad(MerknadUnderBehandling).WithMerknad(Merknad{Type: MerknadUnderBehandling, Beskrivelse: &beskrivelse})
}

package domain

import "time"

// ApprecStatus is the status carried in a receipt.
type ApprecStatus string

const (
	ApprecOK     ApprecStatus = "OK"
	ApprecAvvist ApprecStatus = "AVVIST"
)

const (
	msgTypeVerdi       = "SYKMELD"
	msgTypeBeskrivelse = "Medisinsk vurdering av arbeidsmulighet ved sykdom, sykmelding"
	navOrgName         = "NAV"
	navOrgNr           = "889640782"
)

// Organisation identifies a party of a receipt.
type Organisation struct {
	Navn  string  `json:"navn"`
	OrgNr *string `json:"orgnr,omitempty"`
	HerID *string `json:"herId,omitempty"`
}

// Apprec is the application receipt sent back toward the submitting system.
type Apprec struct {
	Ediloggid            string            `json:"ediloggid"`
	MsgID                string            `json:"msgId"`
	MsgTypeVerdi         string            `json:"msgTypeVerdi"`
	MsgTypeBeskrivelse   string            `json:"msgTypeBeskrivelse"`
	GenDate              LocalDateTime     `json:"genDate"`
	ApprecStatus         ApprecStatus      `json:"apprecStatus"`
	TekstTilSender       *string           `json:"tekstTilSender"`
	SenderOrganisasjon   Organisation      `json:"senderOrganisasjon"`
	MottakerOrganisasjon Organisation      `json:"mottakerOrganisasjon"`
	ValidationResult     *ValidationResult `json:"validationResult"`
}

// NewApprec builds a receipt for rs. An INVALID outcome yields an AVVIST
// receipt carrying the outcome; anything else yields OK.
func NewApprec(rs ReceivedSykmelding, outcome ValidationResult, now time.Time) Apprec {
	orgNr := navOrgNr
	a := Apprec{
		Ediloggid:          rs.NavLogID,
		MsgID:              rs.MsgID,
		MsgTypeVerdi:       msgTypeVerdi,
		MsgTypeBeskrivelse: msgTypeBeskrivelse,
		GenDate:            NewLocalDateTime(now),
		ApprecStatus:       ApprecOK,
		SenderOrganisasjon: Organisation{
			Navn:  rs.LegekontorOrgName,
			OrgNr: rs.LegekontorOrgNr,
			HerID: rs.LegekontorHerID,
		},
		MottakerOrganisasjon: Organisation{Navn: navOrgName, OrgNr: &orgNr},
	}

	if outcome.Status == StatusInvalid {
		a.ApprecStatus = ApprecAvvist
		text := "Sykmeldingen kan ikke rettes, det må skrives en ny. Grunnet følgende:"
		for _, hit := range outcome.RuleHits {
			text += " " + hit.MessageForSender
		}
		a.TekstTilSender = &text
		v := outcome.Clone()
		a.ValidationResult = &v
	}
	return a
}

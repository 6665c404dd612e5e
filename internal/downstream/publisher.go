// Package downstream publishes case outcomes to the systems that consume
// them: receipts toward the submitter, the enriched submission onward, and
// notifications toward the user.
package downstream

import (
	"context"
	"time"

	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/platform/config"
)

// Notification types.
const (
	NotificationOpprettet   = "MANUELL_BEHANDLING_OPPRETTET"
	NotificationFerdigstilt = "MANUELL_BEHANDLING_FERDIGSTILT"
)

const sourceHeader = "source"

// Notification tells the user-facing side that a case changed state.
type Notification struct {
	Type         string    `json:"type"`
	SykmeldingID string    `json:"sykmeldingId"`
	OppgaveID    int64     `json:"oppgaveId"`
	Tidspunkt    time.Time `json:"tidspunkt"`
}

// JSONSender produces keyed JSON records.
type JSONSender interface {
	SendJSON(ctx context.Context, topic, key string, value any, headers map[string]string) error
}

// ReceiptCounter is notified for every published receipt.
type ReceiptCounter interface {
	CountReceipt(status string)
}

// Publisher fans out case outcomes to Kafka topics.
type Publisher struct {
	sender  JSONSender
	topics  config.KafkaConfig
	counter ReceiptCounter
	source  string
}

// New creates a publisher. counter may be nil.
func New(sender JSONSender, topics config.KafkaConfig, counter ReceiptCounter) *Publisher {
	return &Publisher{sender: sender, topics: topics, counter: counter, source: "manuell-oppgave-backend"}
}

// SendReceipt publishes the receipt for a submission.
func (p *Publisher) SendReceipt(ctx context.Context, sykmeldingID string, apprec domain.Apprec) error {
	if err := p.sender.SendJSON(ctx, p.topics.GetReceiptTopic(), sykmeldingID, apprec, p.headers()); err != nil {
		return err
	}
	if p.counter != nil {
		p.counter.CountReceipt(string(apprec.ApprecStatus))
	}
	return nil
}

// SendSykmelding forwards the submission. Rejected submissions go to the
// rejection topic, all others to the approved topic.
func (p *Publisher) SendSykmelding(ctx context.Context, sykmeldingID string, rs domain.ReceivedSykmelding, outcome domain.ValidationResult) error {
	topic := p.topics.GetOkSykmeldingTopic()
	if outcome.Status == domain.StatusInvalid {
		topic = p.topics.GetAvvistSykmeldingTopic()
	}
	return p.sender.SendJSON(ctx, topic, sykmeldingID, rs, p.headers())
}

// SendNotification publishes a user notification.
func (p *Publisher) SendNotification(ctx context.Context, n Notification) error {
	return p.sender.SendJSON(ctx, p.topics.GetNotificationTopic(), n.SykmeldingID, n, p.headers())
}

func (p *Publisher) headers() map[string]string {
	return map[string]string{sourceHeader: p.source}
}

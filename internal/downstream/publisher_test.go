package downstream

import (
	"context"
	"testing"

	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/platform/config"
)

type sent struct {
	topic string
	key   string
	value any
}

type fakeSender struct {
	records []sent
}

func (f *fakeSender) SendJSON(ctx context.Context, topic, key string, value any, headers map[string]string) error {
	f.records = append(f.records, sent{topic: topic, key: key, value: value})
	return nil
}

type receiptCount map[string]int

func (r receiptCount) CountReceipt(s string) { r[s]++ }

func testTopics() *config.Config {
	return &config.Config{
		ReceiptTopic:          "apprec",
		OkSykmeldingTopic:     "ok",
		AvvistSykmeldingTopic: "avvist",
		NotificationTopic:     "notifikasjon",
	}
}

func TestSendSykmeldingRoutesByOutcome(t *testing.T) {
	sender := &fakeSender{}
	p := New(sender, testTopics(), nil)
	ctx := context.Background()

	if err := p.SendSykmelding(ctx, "sm-1", domain.ReceivedSykmelding{}, domain.Approved()); err != nil {
		t.Fatalf("send ok: %v", err)
	}
	if err := p.SendSykmelding(ctx, "sm-2", domain.ReceivedSykmelding{}, domain.RejectedBackdating()); err != nil {
		t.Fatalf("send avvist: %v", err)
	}

	if sender.records[0].topic != "ok" || sender.records[1].topic != "avvist" {
		t.Fatalf("unexpected routing: %+v", sender.records)
	}
	if sender.records[1].key != "sm-2" {
		t.Fatalf("expected record keyed by sykmelding id, got %q", sender.records[1].key)
	}
}

func TestSendReceiptCountsByStatus(t *testing.T) {
	sender := &fakeSender{}
	counts := receiptCount{}
	p := New(sender, testTopics(), counts)

	if err := p.SendReceipt(context.Background(), "sm-1", domain.Apprec{ApprecStatus: domain.ApprecAvvist}); err != nil {
		t.Fatalf("send receipt: %v", err)
	}
	if sender.records[0].topic != "apprec" {
		t.Fatalf("expected apprec topic, got %s", sender.records[0].topic)
	}
	if counts[string(domain.ApprecAvvist)] != 1 {
		t.Fatalf("expected one AVVIST receipt counted, got %v", counts)
	}
}

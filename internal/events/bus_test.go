package events

import (
	"context"
	"testing"

	"manuell_oppgave_backend/platform/logger"
	"manuell_oppgave_backend/platform/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSubscribeMetricsCountsCaseEvents(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	m := metrics.New()
	SubscribeMetrics(bus, m)
	ctx := context.Background()

	_ = bus.PublishSync(ctx, OppgaveOpprettet{BaseEvent: NewBaseEvent(), SykmeldingID: "sm-1", OppgaveID: 500})
	_ = bus.PublishSync(ctx, OppgaveFerdigstilt{BaseEvent: NewBaseEvent(), OppgaveID: 500, Outcome: "INVALID", Oppfolging: true})
	_ = bus.PublishSync(ctx, OppgaveStatusOppdatert{BaseEvent: NewBaseEvent(), OppgaveID: 500, Status: "OPEN", Source: "poll"})

	if got := testutil.ToFloat64(m.OppgaveCreated); got != 1 {
		t.Fatalf("expected one created, got %v", got)
	}
	if got := testutil.ToFloat64(m.OppgaveFinalized.WithLabelValues("INVALID")); got != 1 {
		t.Fatalf("expected one INVALID finalization, got %v", got)
	}
	if got := testutil.ToFloat64(m.FollowUpCreated); got != 1 {
		t.Fatalf("expected one follow-up, got %v", got)
	}
	if got := testutil.ToFloat64(m.StatusUpdates.WithLabelValues("poll", "OPEN")); got != 1 {
		t.Fatalf("expected one poll status update, got %v", got)
	}
}

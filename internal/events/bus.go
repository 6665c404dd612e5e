package events

import (
	"context"

	platformevents "manuell_oppgave_backend/platform/events"
	"manuell_oppgave_backend/platform/logger"
	"manuell_oppgave_backend/platform/metrics"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
// This is a convenience re-export from platform/events.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// SubscribeMetrics keeps the case counters in step with published events.
func SubscribeMetrics(bus Bus, m *metrics.Metrics) {
	bus.Subscribe(OppgaveOpprettet{}.EventName(), HandlerFunc(func(ctx context.Context, e Event) error {
		m.OppgaveCreated.Inc()
		return nil
	}))
	bus.Subscribe(OppgaveDuplikat{}.EventName(), HandlerFunc(func(ctx context.Context, e Event) error {
		m.DuplicateMessages.Inc()
		return nil
	}))
	bus.Subscribe(OppgaveFerdigstilt{}.EventName(), HandlerFunc(func(ctx context.Context, e Event) error {
		if ev, ok := e.(OppgaveFerdigstilt); ok {
			m.OppgaveFinalized.WithLabelValues(ev.Outcome).Inc()
			if ev.Oppfolging {
				m.FollowUpCreated.Inc()
			}
		}
		return nil
	}))
	bus.Subscribe(OppgaveSlettet{}.EventName(), HandlerFunc(func(ctx context.Context, e Event) error {
		m.OppgaveDeleted.Inc()
		return nil
	}))
	bus.Subscribe(OppgaveStatusOppdatert{}.EventName(), HandlerFunc(func(ctx context.Context, e Event) error {
		if ev, ok := e.(OppgaveStatusOppdatert); ok {
			m.StatusUpdates.WithLabelValues(ev.Source, ev.Status).Inc()
		}
		return nil
	}))
}

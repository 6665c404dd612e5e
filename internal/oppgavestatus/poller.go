package oppgavestatus

import (
	"context"
	"sync/atomic"
	"time"

	"manuell_oppgave_backend/internal/events"
	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/internal/oppgave/client"
	"manuell_oppgave_backend/platform/logger"

	"github.com/lthibault/jitterbug/v2"
	"golang.org/x/sync/errgroup"
)

// TaskReader fetches a task from the task API.
type TaskReader interface {
	Get(ctx context.Context, id int64) (client.Oppgave, error)
}

// Poller resolves the status of tasks never seen on the event path.
type Poller struct {
	repo      StatusWriter
	tasks     TaskReader
	bus       events.Bus
	log       *logger.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewPoller creates the poll path. batchSize bounds both the batch and the
// number of concurrent lookups.
func NewPoller(repo StatusWriter, tasks TaskReader, bus events.Bus, interval time.Duration, batchSize int, log *logger.Logger) *Poller {
	if batchSize < 1 {
		batchSize = 10
	}
	return &Poller{
		repo:      repo,
		tasks:     tasks,
		bus:       bus,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run polls once immediately and then on a jittered interval until ctx is
// done. It is meant to run only while this replica is leader.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("status poller started", "interval", p.interval.String(), "batch_size", p.batchSize)
	defer p.log.Info("status poller stopped")

	ticker := jitterbug.New(p.interval, &jitterbug.Norm{Stdev: p.interval / 20})
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	resolved, err := p.PollOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("status poll failed", "error", err)
		}
		return
	}
	if resolved > 0 {
		p.log.Info("status poll finished", "resolved", resolved)
	}
}

// PollOnce resolves batches of unknown-status tasks until no task is left
// that has not been tried in this cycle. Tasks whose lookup fails are skipped
// for the rest of the cycle and tried again next interval. It returns the
// number of tasks resolved.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	total := 0
	attempted := make([]int64, 0, p.batchSize)
	for {
		ids, err := p.repo.ListWithUnknownStatus(ctx, attempted, p.batchSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		resolved := p.resolveBatch(ctx, ids)
		total += resolved
		if resolved < len(ids) {
			p.log.Warn("status poll skipped unresolved tasks", "batch", len(ids), "unresolved", len(ids)-resolved)
		}
		attempted = append(attempted, ids...)
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func (p *Poller) resolveBatch(ctx context.Context, ids []int64) int {
	var resolved atomic.Int32
	var g errgroup.Group
	g.SetLimit(p.batchSize)

	for _, id := range ids {
		g.Go(func() error {
			if p.resolve(ctx, id) {
				resolved.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(resolved.Load())
}

// resolve looks up one task. Failures are logged and never abort the batch.
func (p *Poller) resolve(ctx context.Context, oppgaveID int64) bool {
	log := p.log.WithContext(ctx).WithCase("", oppgaveID)

	task, err := p.tasks.Get(ctx, oppgaveID)
	if err != nil {
		log.Warn("could not fetch oppgave status", "error", err)
		return false
	}
	status, ok := domain.StatusFromOppgave(task.Status)
	if !ok {
		log.Warn("unknown oppgave status", "status", task.Status)
		return false
	}

	at := domain.NewLocalDateTime(p.now()).Time
	if task.EndretTidspunkt != nil {
		at = domain.NewLocalDateTime(*task.EndretTidspunkt).Time
	}

	updated, err := p.repo.UpdateStatus(ctx, oppgaveID, status, at)
	if err != nil {
		log.DatabaseError("update oppgave status", err)
		return false
	}
	if !updated {
		return false
	}

	p.bus.Publish(ctx, events.OppgaveStatusOppdatert{
		BaseEvent: events.NewBaseEvent(),
		OppgaveID: oppgaveID,
		Status:    string(status),
		Source:    SourcePoll,
	})
	return true
}

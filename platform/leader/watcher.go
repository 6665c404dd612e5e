package leader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"manuell_oppgave_backend/platform/logger"

	"github.com/lthibault/jitterbug/v2"
)

// State is the replica's view of its own role.
type State int

const (
	Follower State = iota
	Leader
)

func (s State) String() string {
	if s == Leader {
		return "LEADER"
	}
	return "FOLLOWER"
}

// LeaderFunc runs while this replica is leader. Its context is cancelled
// as soon as leadership is lost. An error returned while leadership is still
// held stops the watcher and is returned from Run.
type LeaderFunc func(ctx context.Context) error

// Watcher polls an Elector and runs a LeaderFunc while leadership is held.
// Leadership must be reported continuously for the debounce period before
// the replica acts as leader; loss of leadership takes effect immediately.
type Watcher struct {
	elector  Elector
	interval time.Duration
	debounce time.Duration
	log      *logger.Logger
	now      func() time.Time

	state          State
	candidateSince time.Time
	cancelLead     context.CancelFunc
	wg             sync.WaitGroup
	failed         chan error
}

// NewWatcher creates a watcher.
func NewWatcher(elector Elector, interval, debounce time.Duration, log *logger.Logger) *Watcher {
	return &Watcher{
		elector:  elector,
		interval: interval,
		debounce: debounce,
		log:      log,
		now:      time.Now,
		failed:   make(chan error, 1),
	}
}

// State returns the current role.
func (w *Watcher) State() State {
	return w.state
}

// Run blocks until ctx is done or fn fails, starting fn on gaining
// leadership and cancelling it on losing leadership.
func (w *Watcher) Run(ctx context.Context, fn LeaderFunc) error {
	ticker := jitterbug.New(w.interval, &jitterbug.Norm{Stdev: w.interval / 10})
	defer ticker.Stop()
	defer w.stepDown()

	w.tick(ctx, fn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.failed:
			w.log.Error("leader work failed", slog.String("error", err.Error()))
			return err
		case <-ticker.C:
			w.tick(ctx, fn)
		}
	}
}

func (w *Watcher) tick(ctx context.Context, fn LeaderFunc) {
	isLeader, err := w.elector.IsLeader(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("leader election check failed", slog.String("error", err.Error()))
		}
		isLeader = false
	}
	w.observe(ctx, isLeader, fn)
}

// observe advances the state machine with one election result.
func (w *Watcher) observe(ctx context.Context, isLeader bool, fn LeaderFunc) {
	if !isLeader {
		w.candidateSince = time.Time{}
		if w.state == Leader {
			w.log.Info("lost leadership")
			w.stepDown()
		}
		return
	}

	if w.state == Leader {
		return
	}

	now := w.now()
	if w.candidateSince.IsZero() {
		w.candidateSince = now
	}
	if now.Sub(w.candidateSince) < w.debounce {
		return
	}

	w.log.Info("gained leadership")
	w.state = Leader
	leadCtx, cancel := context.WithCancel(ctx)
	w.cancelLead = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := fn(leadCtx); err != nil && leadCtx.Err() == nil {
			select {
			case w.failed <- err:
			default:
			}
		}
	}()
}

func (w *Watcher) stepDown() {
	w.state = Follower
	if w.cancelLead != nil {
		w.cancelLead()
		w.cancelLead = nil
	}
	w.wg.Wait()
}

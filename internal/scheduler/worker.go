package scheduler

import (
	"context"
	"fmt"

	"manuell_oppgave_backend/platform/apperr"
	"manuell_oppgave_backend/platform/config"
	"manuell_oppgave_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Replayer re-runs the external finalize step for a task.
type Replayer interface {
	ReplayFinalize(ctx context.Context, oppgaveID int64, enhet, veileder string) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	replayer Replayer
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, replayer Replayer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		replayer: replayer,
		log:      log,
	}

	mux.HandleFunc(TaskFerdigstillOppgave, w.handleFerdigstillOppgave)

	return w, nil
}

// Run processes replay tasks until ctx is done. Unlike asynq's own Run it
// does not wait for OS signals, so cancelling ctx is enough to stop it.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start scheduler worker: %w", err)
	}
	w.log.Info("scheduler worker started")

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("scheduler worker stopped")
	return nil
}

func (w *Worker) handleFerdigstillOppgave(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFerdigstillOppgavePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := w.log.WithCase("", payload.OppgaveID)
	err = w.replayer.ReplayFinalize(ctx, payload.OppgaveID, payload.Enhet, payload.Veileder)
	switch {
	case err == nil:
		return nil
	case apperr.Is(err, apperr.KindNotFound):
		log.Warn("oppgave no longer exists, dropping finalize replay")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	default:
		log.Warn("finalize replay failed", "error", err)
		return err
	}
}

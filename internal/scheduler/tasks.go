package scheduler

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

// TaskFerdigstillOppgave replays the external finalize call for a case that
// is already finalized locally.
const TaskFerdigstillOppgave = "manuelloppgave.ferdigstill"

type FerdigstillOppgavePayload struct {
	OppgaveID int64  `json:"oppgaveId"`
	Enhet     string `json:"enhet"`
	Veileder  string `json:"veileder"`
}

func NewFerdigstillOppgaveTask(payload FerdigstillOppgavePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFerdigstillOppgave, data), nil
}

func ParseFerdigstillOppgavePayload(task *asynq.Task) (FerdigstillOppgavePayload, error) {
	var payload FerdigstillOppgavePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FerdigstillOppgavePayload{}, err
	}
	if payload.OppgaveID == 0 {
		return FerdigstillOppgavePayload{}, errors.New("ferdigstill payload without oppgaveId")
	}
	return payload, nil
}

package repository

import (
	"context"
	"time"

	"manuell_oppgave_backend/internal/manuelloppgave/domain"
)

// Reader provides read operations for manual review cases.
type Reader interface {
	Exists(ctx context.Context, sykmeldingID string) (bool, error)
	GetByOppgaveID(ctx context.Context, oppgaveID int64) (domain.ManuellOppgave, error)
	GetBySykmeldingID(ctx context.Context, sykmeldingID string) (domain.ManuellOppgave, error)
	ListUnfinished(ctx context.Context) ([]domain.UnfinishedOppgave, error)
	ListWithUnknownStatus(ctx context.Context, exclude []int64, limit int) ([]int64, error)
}

// Writer provides write operations for manual review cases.
type Writer interface {
	Insert(ctx context.Context, m domain.ManuellOppgave) error
	UpdateStatus(ctx context.Context, oppgaveID int64, status domain.ExternalStatus, at time.Time) (bool, error)
	Finalize(ctx context.Context, oppgaveID int64, f domain.Finalization) error
	MarkApprecSent(ctx context.Context, oppgaveID int64) error
	Delete(ctx context.Context, sykmeldingID string) error
}

// Repository combines read and write access.
type Repository interface {
	Reader
	Writer
}

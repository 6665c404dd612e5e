// Package repotest provides an in-memory repository for tests of packages
// that depend on the manual review case store.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/internal/manuelloppgave/repository"
	"manuell_oppgave_backend/platform/apperr"
)

// Memory mirrors the conditional semantics of the PostgreSQL repository.
type Memory struct {
	mu    sync.Mutex
	rows  map[string]domain.ManuellOppgave
	Calls map[string]int
}

var _ repository.Repository = (*Memory)(nil)

// New creates an empty store.
func New() *Memory {
	return &Memory{rows: map[string]domain.ManuellOppgave{}, Calls: map[string]int{}}
}

// Put stores m as-is, bypassing the insert defaults.
func (r *Memory) Put(m domain.ManuellOppgave) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[m.SykmeldingID] = m
}

// Len returns the number of stored cases.
func (r *Memory) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Count returns how often a method was called.
func (r *Memory) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls[method]
}

func (r *Memory) Exists(_ context.Context, sykmeldingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["Exists"]++
	_, ok := r.rows[sykmeldingID]
	return ok, nil
}

func (r *Memory) Insert(_ context.Context, m domain.ManuellOppgave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["Insert"]++
	if _, ok := r.rows[m.SykmeldingID]; ok {
		return apperr.Conflict("manuell oppgave already exists")
	}
	for _, row := range r.rows {
		if m.OppgaveID != 0 && row.OppgaveID == m.OppgaveID {
			return apperr.Conflict("oppgave already tracked for another sykmelding")
		}
	}
	if m.OpprinneligValidationResult == nil {
		clone := m.ValidationResult.Clone()
		m.OpprinneligValidationResult = &clone
	}
	r.rows[m.SykmeldingID] = m
	return nil
}

func (r *Memory) GetByOppgaveID(_ context.Context, oppgaveID int64) (domain.ManuellOppgave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byOppgave(oppgaveID)
	if !ok {
		return domain.ManuellOppgave{}, apperr.NotFound("manuell oppgave not found")
	}
	return m, nil
}

func (r *Memory) GetBySykmeldingID(_ context.Context, sykmeldingID string) (domain.ManuellOppgave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[sykmeldingID]
	if !ok {
		return domain.ManuellOppgave{}, apperr.NotFound("manuell oppgave not found")
	}
	return m, nil
}

func (r *Memory) ListUnfinished(_ context.Context) ([]domain.UnfinishedOppgave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]domain.UnfinishedOppgave, 0)
	for _, m := range r.sorted() {
		if m.Ferdigstilt {
			continue
		}
		items = append(items, domain.UnfinishedOppgave{
			OppgaveID:    m.OppgaveID,
			SykmeldingID: m.SykmeldingID,
			MottattDato:  m.MottattDato,
			Status:       m.Status,
		})
	}
	return items, nil
}

func (r *Memory) ListWithUnknownStatus(_ context.Context, exclude []int64, limit int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["ListWithUnknownStatus"]++
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	ids := make([]int64, 0)
	for _, m := range r.sorted() {
		if m.Status == nil && !skip[m.OppgaveID] && len(ids) < limit {
			ids = append(ids, m.OppgaveID)
		}
	}
	return ids, nil
}

func (r *Memory) UpdateStatus(_ context.Context, oppgaveID int64, status domain.ExternalStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["UpdateStatus"]++
	m, ok := r.byOppgave(oppgaveID)
	if !ok {
		return false, nil
	}
	m.Status = &status
	m.StatusTimestamp = &at
	r.rows[m.SykmeldingID] = m
	return true, nil
}

func (r *Memory) Finalize(_ context.Context, oppgaveID int64, f domain.Finalization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["Finalize"]++
	m, ok := r.byOppgave(oppgaveID)
	if !ok {
		return apperr.NotFound("manuell oppgave not found")
	}
	if m.Ferdigstilt {
		return apperr.Conflict("manuell oppgave is already finalized")
	}
	m.ReceivedSykmelding = f.ReceivedSykmelding
	m.ValidationResult = f.ValidationResult
	if m.OpprinneligValidationResult == nil {
		original := f.OpprinneligValidationResult
		m.OpprinneligValidationResult = &original
	}
	m.Apprec = f.Apprec
	m.Ferdigstilt = true
	r.rows[m.SykmeldingID] = m
	return nil
}

func (r *Memory) MarkApprecSent(_ context.Context, oppgaveID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["MarkApprecSent"]++
	if m, ok := r.byOppgave(oppgaveID); ok {
		m.SendtApprec = true
		r.rows[m.SykmeldingID] = m
	}
	return nil
}

func (r *Memory) Delete(_ context.Context, sykmeldingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["Delete"]++
	delete(r.rows, sykmeldingID)
	return nil
}

func (r *Memory) byOppgave(oppgaveID int64) (domain.ManuellOppgave, bool) {
	for _, m := range r.rows {
		if m.OppgaveID == oppgaveID {
			return m, true
		}
	}
	return domain.ManuellOppgave{}, false
}

func (r *Memory) sorted() []domain.ManuellOppgave {
	out := make([]domain.ManuellOppgave, 0, len(r.rows))
	for _, m := range r.rows {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OppgaveID < out[j].OppgaveID })
	return out
}

// Package repository persists manual review cases in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const oppgaveNotFoundMessage = "manuell oppgave not found"

const uniqueViolation = "23505"

const selectColumns = `
		SELECT id, oppgave_id, pasient_fnr, receivedsykmelding, validationresult, opprinnelig_validationresult,
			apprec, ferdigstilt, sendt_apprec, status, status_timestamp, mottatt_dato, created_at
		FROM manuell_oppgave`

const (
	existsQuery = `SELECT EXISTS (SELECT 1 FROM manuell_oppgave WHERE id = $1)`

	insertQuery = `
		INSERT INTO manuell_oppgave (
			id, oppgave_id, pasient_fnr, receivedsykmelding, validationresult, opprinnelig_validationresult,
			apprec, ferdigstilt, sendt_apprec, mottatt_dato
		) VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	listUnfinishedQuery = `
		SELECT oppgave_id, id, mottatt_dato, status
		FROM manuell_oppgave
		WHERE ferdigstilt = false
		ORDER BY mottatt_dato ASC`

	unknownStatusQuery = `
		SELECT oppgave_id
		FROM manuell_oppgave
		WHERE status IS NULL
			AND oppgave_id <> ALL($1::bigint[])
		ORDER BY mottatt_dato ASC, oppgave_id ASC
		LIMIT $2`

	updateStatusQuery = `
		UPDATE manuell_oppgave
		SET status = $2, status_timestamp = $3
		WHERE oppgave_id = $1`

	finalizeQuery = `
		UPDATE manuell_oppgave
		SET receivedsykmelding = $2,
			validationresult = $3,
			opprinnelig_validationresult = COALESCE(opprinnelig_validationresult, $4),
			apprec = $5,
			ferdigstilt = true
		WHERE oppgave_id = $1 AND ferdigstilt = false`

	markApprecSentQuery = `UPDATE manuell_oppgave SET sendt_apprec = true WHERE oppgave_id = $1`

	deleteQuery = `DELETE FROM manuell_oppgave WHERE id = $1`
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new manual review case repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Exists reports whether a case with this submission id is stored.
func (r *Repo) Exists(ctx context.Context, sykmeldingID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, existsQuery, sykmeldingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check manuell oppgave exists: %w", err)
	}
	return exists, nil
}

// Insert stores a new case. A case with the same submission id already
// stored yields a Conflict.
func (r *Repo) Insert(ctx context.Context, m domain.ManuellOppgave) error {
	rs, err := json.Marshal(m.ReceivedSykmelding)
	if err != nil {
		return fmt.Errorf("marshal received sykmelding: %w", err)
	}
	vr, err := json.Marshal(m.ValidationResult)
	if err != nil {
		return fmt.Errorf("marshal validation result: %w", err)
	}
	original := m.OpprinneligValidationResult
	if original == nil {
		clone := m.ValidationResult.Clone()
		original = &clone
	}
	ovr, err := json.Marshal(original)
	if err != nil {
		return fmt.Errorf("marshal original validation result: %w", err)
	}
	ap, err := json.Marshal(m.Apprec)
	if err != nil {
		return fmt.Errorf("marshal apprec: %w", err)
	}

	tag, err := r.pool.Exec(ctx, insertQuery,
		m.SykmeldingID, m.OppgaveID, m.PasientFnr, rs, vr, ovr, ap, m.SendtApprec, m.MottattDato,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("oppgave already tracked for another sykmelding")
		}
		return fmt.Errorf("insert manuell oppgave: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("manuell oppgave already exists")
	}
	return nil
}

// GetByOppgaveID loads the case tracked by an external task.
func (r *Repo) GetByOppgaveID(ctx context.Context, oppgaveID int64) (domain.ManuellOppgave, error) {
	m, err := scanOppgave(r.pool.QueryRow(ctx, selectColumns+` WHERE oppgave_id = $1`, oppgaveID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ManuellOppgave{}, apperr.NotFound(oppgaveNotFoundMessage)
		}
		return domain.ManuellOppgave{}, fmt.Errorf("get manuell oppgave by oppgave id: %w", err)
	}
	return m, nil
}

// GetBySykmeldingID loads the case for a submission.
func (r *Repo) GetBySykmeldingID(ctx context.Context, sykmeldingID string) (domain.ManuellOppgave, error) {
	m, err := scanOppgave(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, sykmeldingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ManuellOppgave{}, apperr.NotFound(oppgaveNotFoundMessage)
		}
		return domain.ManuellOppgave{}, fmt.Errorf("get manuell oppgave by sykmelding id: %w", err)
	}
	return m, nil
}

// ListUnfinished returns summaries of all cases awaiting a decision.
func (r *Repo) ListUnfinished(ctx context.Context) ([]domain.UnfinishedOppgave, error) {
	rows, err := r.pool.Query(ctx, listUnfinishedQuery)
	if err != nil {
		return nil, fmt.Errorf("list unfinished manuell oppgaver: %w", err)
	}
	defer rows.Close()

	items := make([]domain.UnfinishedOppgave, 0)
	for rows.Next() {
		var item domain.UnfinishedOppgave
		var status *string
		if err := rows.Scan(&item.OppgaveID, &item.SykmeldingID, &item.MottattDato, &status); err != nil {
			return nil, fmt.Errorf("scan unfinished manuell oppgave: %w", err)
		}
		item.Status = toStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unfinished manuell oppgaver: %w", err)
	}
	return items, nil
}

// ListWithUnknownStatus returns up to limit task ids whose external status
// has not been observed yet, oldest first. Ids in exclude are skipped.
func (r *Repo) ListWithUnknownStatus(ctx context.Context, exclude []int64, limit int) ([]int64, error) {
	if exclude == nil {
		exclude = []int64{}
	}
	rows, err := r.pool.Query(ctx, unknownStatusQuery, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("list manuell oppgaver without status: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect oppgave ids: %w", err)
	}
	return ids, nil
}

// UpdateStatus records the external status of a task. It reports whether a
// case tracked by the task exists.
func (r *Repo) UpdateStatus(ctx context.Context, oppgaveID int64, status domain.ExternalStatus, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateStatusQuery, oppgaveID, string(status), at)
	if err != nil {
		return false, fmt.Errorf("update oppgave status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Finalize applies the terminal mutation. It succeeds only for a case that
// is not yet finalized; otherwise it returns NotFound or Conflict.
func (r *Repo) Finalize(ctx context.Context, oppgaveID int64, f domain.Finalization) error {
	rs, err := json.Marshal(f.ReceivedSykmelding)
	if err != nil {
		return fmt.Errorf("marshal received sykmelding: %w", err)
	}
	vr, err := json.Marshal(f.ValidationResult)
	if err != nil {
		return fmt.Errorf("marshal validation result: %w", err)
	}
	ovr, err := json.Marshal(f.OpprinneligValidationResult)
	if err != nil {
		return fmt.Errorf("marshal original validation result: %w", err)
	}
	ap, err := json.Marshal(f.Apprec)
	if err != nil {
		return fmt.Errorf("marshal apprec: %w", err)
	}

	tag, err := r.pool.Exec(ctx, finalizeQuery, oppgaveID, rs, vr, ovr, ap)
	if err != nil {
		return fmt.Errorf("finalize manuell oppgave: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM manuell_oppgave WHERE oppgave_id = $1)`, oppgaveID).Scan(&exists); err != nil {
		return fmt.Errorf("check manuell oppgave after finalize: %w", err)
	}
	if !exists {
		return apperr.NotFound(oppgaveNotFoundMessage)
	}
	return apperr.Conflict("manuell oppgave is already finalized")
}

// MarkApprecSent records that the receipt has been published.
func (r *Repo) MarkApprecSent(ctx context.Context, oppgaveID int64) error {
	if _, err := r.pool.Exec(ctx, markApprecSentQuery, oppgaveID); err != nil {
		return fmt.Errorf("mark apprec sent: %w", err)
	}
	return nil
}

// Delete removes the case for a submission. Deleting a missing case is a no-op.
func (r *Repo) Delete(ctx context.Context, sykmeldingID string) error {
	if _, err := r.pool.Exec(ctx, deleteQuery, sykmeldingID); err != nil {
		return fmt.Errorf("delete manuell oppgave: %w", err)
	}
	return nil
}

func scanOppgave(row pgx.Row) (domain.ManuellOppgave, error) {
	var m domain.ManuellOppgave
	var rs, vr, ap []byte
	var ovr []byte
	var status *string

	err := row.Scan(
		&m.SykmeldingID, &m.OppgaveID, &m.PasientFnr, &rs, &vr, &ovr,
		&ap, &m.Ferdigstilt, &m.SendtApprec, &status, &m.StatusTimestamp, &m.MottattDato, &m.CreatedAt,
	)
	if err != nil {
		return domain.ManuellOppgave{}, err
	}

	if err := json.Unmarshal(rs, &m.ReceivedSykmelding); err != nil {
		return domain.ManuellOppgave{}, fmt.Errorf("decode received sykmelding: %w", err)
	}
	if err := json.Unmarshal(vr, &m.ValidationResult); err != nil {
		return domain.ManuellOppgave{}, fmt.Errorf("decode validation result: %w", err)
	}
	if len(ovr) > 0 {
		var original domain.ValidationResult
		if err := json.Unmarshal(ovr, &original); err != nil {
			return domain.ManuellOppgave{}, fmt.Errorf("decode original validation result: %w", err)
		}
		m.OpprinneligValidationResult = &original
	}
	if err := json.Unmarshal(ap, &m.Apprec); err != nil {
		return domain.ManuellOppgave{}, fmt.Errorf("decode apprec: %w", err)
	}
	m.Status = toStatus(status)
	return m, nil
}

func toStatus(s *string) *domain.ExternalStatus {
	if s == nil {
		return nil
	}
	status := domain.ExternalStatus(*s)
	return &status
}

// isUniqueViolation reports a unique constraint the ON CONFLICT clause does
// not cover, such as a second sykmelding reusing an oppgave_id.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

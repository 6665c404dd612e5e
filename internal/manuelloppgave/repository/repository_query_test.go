package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestFinalizeQueryOnlyTouchesUnfinalizedCases(t *testing.T) {
	if !strings.Contains(finalizeQuery, "WHERE oppgave_id = $1 AND ferdigstilt = false") {
		t.Fatalf("expected finalize to be conditional on ferdigstilt = false")
	}
	if !strings.Contains(finalizeQuery, "COALESCE(opprinnelig_validationresult, $4)") {
		t.Fatalf("expected finalize to keep an existing original outcome")
	}
	if strings.Contains(finalizeQuery, "status =") {
		t.Fatalf("finalize must not touch the external status")
	}
}

func TestUpdateStatusQueryDoesNotTouchDecisionColumns(t *testing.T) {
	for _, column := range []string{"ferdigstilt", "validationresult", "apprec"} {
		if strings.Contains(updateStatusQuery, column) {
			t.Fatalf("status update must not touch %s", column)
		}
	}
}

func TestUnknownStatusQueryIsBoundedAndTyped(t *testing.T) {
	if !strings.Contains(unknownStatusQuery, "WHERE status IS NULL") {
		t.Fatalf("expected status IS NULL filter")
	}
	if !strings.Contains(unknownStatusQuery, "LIMIT $2") {
		t.Fatalf("expected bounded batch")
	}
	if !strings.Contains(unknownStatusQuery, "oppgave_id <> ALL($1::bigint[])") {
		t.Fatalf("expected ids already tried in the cycle to be excluded")
	}
	if !strings.Contains(unknownStatusQuery, "ORDER BY mottatt_dato ASC, oppgave_id ASC") {
		t.Fatalf("expected a total order so batches are stable")
	}
	if strings.Contains(listUnfinishedQuery, "receivedsykmelding") {
		t.Fatalf("unfinished list must read the typed mottatt_dato column, not the payload")
	}
}

func TestInsertIsIdempotentOnSykmeldingID(t *testing.T) {
	if !strings.Contains(insertQuery, "ON CONFLICT (id) DO NOTHING") {
		t.Fatalf("expected insert to ignore duplicates")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "manuell_oppgave_oppgave_id_key"})
	if !isUniqueViolation(dup) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("connection reset")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

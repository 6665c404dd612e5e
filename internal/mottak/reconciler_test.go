package mottak

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"manuell_oppgave_backend/internal/downstream"
	"manuell_oppgave_backend/internal/events"
	"manuell_oppgave_backend/internal/manuelloppgave/domain"
	"manuell_oppgave_backend/internal/manuelloppgave/repository/repotest"
	"manuell_oppgave_backend/internal/oppgave/client"
	"manuell_oppgave_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeCreator struct {
	mu   sync.Mutex
	reqs []client.OpprettOppgave
	id   int64
	err  error
}

func (f *fakeCreator) Create(_ context.Context, req client.OpprettOppgave) (client.OpprettOppgaveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return client.OpprettOppgaveResponse{}, f.err
	}
	return client.OpprettOppgaveResponse{ID: f.id, Versjon: 1}, nil
}

type fakePublisher struct {
	mu            sync.Mutex
	receipts      int
	sykmeldinger  []domain.ReceivedSykmelding
	notifications []downstream.Notification
	failAll       bool
}

func (p *fakePublisher) SendReceipt(context.Context, string, domain.Apprec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("broker down")
	}
	p.receipts++
	return nil
}

func (p *fakePublisher) SendSykmelding(_ context.Context, _ string, rs domain.ReceivedSykmelding, _ domain.ValidationResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("broker down")
	}
	p.sykmeldinger = append(p.sykmeldinger, rs)
	return nil
}

func (p *fakePublisher) SendNotification(_ context.Context, n downstream.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("broker down")
	}
	p.notifications = append(p.notifications, n)
	return nil
}

const message = `{
	"sykmelding": {
		"sykmelding": {"id": "sm-1"},
		"personNrPasient": "12345678910",
		"pasientAktoerId": "1000012345678",
		"personNrLege": "10987654321",
		"navLogId": "log-1",
		"msgId": "msg-1",
		"legekontorOrgNr": "123456789",
		"legekontorHerId": null,
		"legekontorOrgName": "Legesenteret",
		"mottattDato": "2024-01-02T10:11:12",
		"tssid": null,
		"merknader": null
	},
	"validationResult": {"status": "MANUAL_PROCESSING", "ruleHits": [{"ruleName": "TILBAKEDATERT", "messageForSender": "s", "messageForUser": "u", "ruleStatus": "MANUAL_PROCESSING"}]},
	"receipt": null
}`

func newReconciler(t *testing.T) (*Reconciler, *repotest.Memory, *fakeCreator, *fakePublisher) {
	t.Helper()
	repo := repotest.New()
	creator := &fakeCreator{id: 500}
	pub := &fakePublisher{}
	r := New(repo, creator, pub, events.NewInMemoryBus(logger.Discard()), logger.Discard())
	r.now = func() time.Time { return time.Date(2024, 1, 2, 10, 15, 0, 0, time.UTC) }
	return r, repo, creator, pub
}

func record(value string) *kgo.Record {
	return &kgo.Record{Topic: "manuelloppgave", Key: []byte("sm-1"), Value: []byte(value)}
}

func TestHandleStoresCaseWithTask(t *testing.T) {
	r, repo, creator, pub := newReconciler(t)

	require.NoError(t, r.Handle(context.Background(), record(message)))

	got, err := repo.GetBySykmeldingID(context.Background(), "sm-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.OppgaveID)
	assert.False(t, got.Ferdigstilt)
	assert.False(t, got.SendtApprec)
	assert.Equal(t, "12345678910", got.PasientFnr)
	assert.Equal(t, domain.StatusManualProcessing, got.ValidationResult.Status)
	require.NotNil(t, got.OpprinneligValidationResult)
	assert.Equal(t, got.ValidationResult, *got.OpprinneligValidationResult)
	assert.Equal(t, domain.ApprecOK, got.Apprec.ApprecStatus)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 11, 12, 0, time.UTC), got.MottattDato)

	require.Len(t, creator.reqs, 1)
	assert.Equal(t, "1000012345678", creator.reqs[0].AktoerID)
	assert.Equal(t, "2024-01-02", creator.reqs[0].AktivDato)

	assert.Equal(t, 0, pub.receipts)
	require.Len(t, pub.sykmeldinger, 1)
	require.Len(t, pub.sykmeldinger[0].Merknader, 1)
	assert.Equal(t, domain.MerknadUnderBehandling, pub.sykmeldinger[0].Merknader[0].Type)
	require.Len(t, pub.notifications, 1)
	assert.Equal(t, downstream.NotificationOpprettet, pub.notifications[0].Type)
}

func TestHandleIsIdempotent(t *testing.T) {
	r, repo, creator, _ := newReconciler(t)

	require.NoError(t, r.Handle(context.Background(), record(message)))
	require.NoError(t, r.Handle(context.Background(), record(message)))

	assert.Equal(t, 1, repo.Len())
	assert.Len(t, creator.reqs, 1)
	assert.Equal(t, 1, repo.Count("Insert"))
}

func TestHandleReusedTaskIDIsNotStoredTwice(t *testing.T) {
	r, repo, creator, pub := newReconciler(t)

	require.NoError(t, r.Handle(context.Background(), record(message)))
	other := strings.Replace(message, `"id": "sm-1"`, `"id": "sm-9"`, 1)
	require.NoError(t, r.Handle(context.Background(), record(other)))

	assert.Len(t, creator.reqs, 2)
	assert.Equal(t, 1, repo.Len())
	exists, err := repo.Exists(context.Background(), "sm-9")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Len(t, pub.sykmeldinger, 1)
}

func TestHandleCreateFailureLeavesNoRecord(t *testing.T) {
	r, repo, creator, pub := newReconciler(t)
	creator.err = errors.New("oppgave unavailable")

	err := r.Handle(context.Background(), record(message))
	require.Error(t, err)
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, pub.sykmeldinger)

	creator.err = nil
	require.NoError(t, r.Handle(context.Background(), record(message)))
	assert.Equal(t, 1, repo.Len())
}

func TestHandleFanOutFailureIsNotFatal(t *testing.T) {
	r, repo, _, pub := newReconciler(t)
	pub.failAll = true

	require.NoError(t, r.Handle(context.Background(), record(message)))
	assert.Equal(t, 1, repo.Len())
}

func TestHandleSendsIncludedReceipt(t *testing.T) {
	r, repo, _, pub := newReconciler(t)
	withReceipt := `{"sykmelding":{"sykmelding":{"id":"sm-2"},"personNrPasient":"12345678910","mottattDato":"2024-01-02T10:11:12"},` +
		`"validationResult":{"status":"MANUAL_PROCESSING","ruleHits":[]},` +
		`"receipt":{"ediloggid":"log-2","msgId":"msg-2","apprecStatus":"OK"}}`

	require.NoError(t, r.Handle(context.Background(), record(withReceipt)))

	got, err := repo.GetBySykmeldingID(context.Background(), "sm-2")
	require.NoError(t, err)
	assert.True(t, got.SendtApprec)
	assert.Equal(t, "log-2", got.Apprec.Ediloggid)
	assert.Equal(t, 1, pub.receipts)
}

func TestHandleFallsBackToRecordKey(t *testing.T) {
	r, repo, _, _ := newReconciler(t)
	noID := `{"sykmelding":{"sykmelding":{},"personNrPasient":"12345678910","mottattDato":"2024-01-02T10:11:12"},` +
		`"validationResult":{"status":"MANUAL_PROCESSING","ruleHits":[]}}`

	require.NoError(t, r.Handle(context.Background(), record(noID)))

	exists, err := repo.Exists(context.Background(), "sm-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHandleRejectsMalformedMessage(t *testing.T) {
	r, repo, creator, _ := newReconciler(t)

	require.Error(t, r.Handle(context.Background(), record(`{not json`)))
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, creator.reqs)
}

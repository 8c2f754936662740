package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"leadnest/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersister struct {
	mu      sync.Mutex
	batches [][]ParsedRow
	nextID  uint
	fatal   error
	failAt  map[int]error // per-row error keyed by line
}

func (f *fakePersister) PersistBatch(ctx context.Context, rows []ParsedRow) ([]RowResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fatal != nil {
		return nil, f.fatal
	}
	f.batches = append(f.batches, rows)

	results := make([]RowResult, 0, len(rows))
	for _, row := range rows {
		result := RowResult{Line: row.Line, Email: row.Input.Email}
		if err, ok := f.failAt[row.Line]; ok {
			result.Err = err
		} else {
			f.nextID++
			result.LeadID = f.nextID
		}
		results = append(results, result)
	}
	return results, nil
}

type fakeScorer struct {
	mu     sync.Mutex
	scored []ScoreLead
	err    error
}

func (f *fakeScorer) ScoreBatch(ctx context.Context, leads []ScoreLead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scored = append(f.scored, leads...)
	return nil
}

const uploadCSV = `name,email,phone,age,job,marital,education,balance,housing,loan,contact,day,month,duration,campaign,pdays,previous,poutcome
Jane Porter,jane@example.com,+3225551234,41,management,married,tertiary,1500,yes,no,cellular,17,may,210,2,,0,success
,missing-name@example.com,,30,services,single,secondary,0,no,no,cellular,1,jan,10,1,,0,
John Clayton,john@example.com,,35,technician,single,secondary,300,no,yes,telephone,3,jun,95,1,40,2,failure
`

func newTestOrchestrator(t *testing.T, persister BatchPersister, scorer BatchScorer) (*Orchestrator, *Registry) {
	t.Helper()

	db := newTestDB(t)
	registry := NewRegistry()
	cfg := config.IngestConfig{BatchSize: 2, Workers: 2, GlobalWorkers: 4}
	return NewOrchestrator(db, registry, persister, scorer, cfg, testLogger()), registry
}

func TestOrchestratorRunHappyPath(t *testing.T) {
	persister := &fakePersister{}
	scorer := &fakeScorer{}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	orch.Run(context.Background(), sessionID, strings.NewReader(uploadCSV), 0)

	snap, ok := registry.Get(sessionID)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, snap.Status)
	assert.Equal(t, 3, snap.Total, "header excluded, invalid rows still counted")
	assert.Equal(t, 2, snap.Saved, "the row without a name is skipped")
	assert.Empty(t, snap.Error)

	// Both persisted leads were submitted for scoring with their features.
	assert.Len(t, scorer.scored, 2)
	for _, lead := range scorer.scored {
		assert.NotZero(t, lead.LeadID)
		assert.Contains(t, lead.Features, "age")
	}
}

func TestOrchestratorRunRespectsLimit(t *testing.T) {
	persister := &fakePersister{}
	scorer := &fakeScorer{}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	orch.Run(context.Background(), sessionID, strings.NewReader(uploadCSV), 1)

	snap, _ := registry.Get(sessionID)
	assert.Equal(t, StatusComplete, snap.Status)
	assert.Equal(t, 1, snap.Total)
	assert.Equal(t, 1, snap.Saved)
}

func TestOrchestratorRunHeaderOnlyFile(t *testing.T) {
	persister := &fakePersister{}
	scorer := &fakeScorer{}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	header := "name,email,phone,age,job,marital,education,balance,housing,loan,contact,day,month,duration,campaign,pdays,previous,poutcome\n"
	orch.Run(context.Background(), sessionID, strings.NewReader(header), 0)

	snap, _ := registry.Get(sessionID)
	assert.Equal(t, StatusComplete, snap.Status)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.Saved)
}

func TestOrchestratorRunPersistFailureSkipsRow(t *testing.T) {
	persister := &fakePersister{failAt: map[int]error{
		2: &PersistError{Line: 2, Email: "jane@example.com", Err: errors.New("constraint violation")},
	}}
	scorer := &fakeScorer{}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	orch.Run(context.Background(), sessionID, strings.NewReader(uploadCSV), 0)

	snap, _ := registry.Get(sessionID)
	assert.Equal(t, StatusComplete, snap.Status)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 1, snap.Saved)
	assert.Len(t, scorer.scored, 1, "failed rows are never scored")
}

func TestOrchestratorRunFatalPersistError(t *testing.T) {
	persister := &fakePersister{fatal: &FatalIngestError{Stage: "persist", Err: errors.New("storage unreachable")}}
	scorer := &fakeScorer{}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	orch.Run(context.Background(), sessionID, strings.NewReader(uploadCSV), 0)

	snap, _ := registry.Get(sessionID)
	assert.Equal(t, StatusError, snap.Status)
	assert.Contains(t, snap.Error, "storage unreachable")
}

func TestOrchestratorRunScoringFailureDoesNotFailUpload(t *testing.T) {
	persister := &fakePersister{}
	scorer := &fakeScorer{err: &ScoringError{Permanent: true, StatusCode: 422, Err: errors.New("bad features")}}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	orch.Run(context.Background(), sessionID, strings.NewReader(uploadCSV), 0)

	snap, _ := registry.Get(sessionID)
	assert.Equal(t, StatusComplete, snap.Status, "scoring failure keeps the upload complete")
	assert.Equal(t, 2, snap.Saved)
	assert.NotEmpty(t, snap.Error, "the session records the scoring failure")
}

func TestOrchestratorRunUnparsableFile(t *testing.T) {
	persister := &fakePersister{}
	scorer := &fakeScorer{}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	orch.Run(context.Background(), sessionID, strings.NewReader("\"unterminated"), 0)

	snap, _ := registry.Get(sessionID)
	assert.Equal(t, StatusError, snap.Status)
	assert.NotEmpty(t, snap.Error)
}

func TestOrchestratorStreamsProgressToSubscriber(t *testing.T) {
	persister := &fakePersister{}
	scorer := &fakeScorer{}
	orch, registry := newTestOrchestrator(t, persister, scorer)

	sessionID := registry.Create()
	updates, cancel, err := registry.Subscribe(sessionID)
	require.NoError(t, err)
	defer cancel()

	orch.Run(context.Background(), sessionID, strings.NewReader(uploadCSV), 0)

	var last Snapshot
	for snap := range updates {
		last = snap
	}
	assert.Equal(t, StatusComplete, last.Status)
	assert.Equal(t, 2, last.Saved)
}

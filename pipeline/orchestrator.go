package pipeline

import (
	"context"
	"encoding/csv"
	"io"
	"log"
	"sync"

	"leadnest/config"

	"gorm.io/gorm"
)

// BatchPersister is the persistence boundary of the orchestrator.
type BatchPersister interface {
	PersistBatch(ctx context.Context, rows []ParsedRow) ([]RowResult, error)
}

// BatchScorer is the scoring boundary of the orchestrator.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, leads []ScoreLead) error
}

// Orchestrator drives one upload through validate → persist → score in
// bounded-concurrency batches, publishing progress to the registry as it
// goes. One orchestrator instance serves all uploads, so its global
// scoring slots cap in-flight scoring batches across sessions.
type Orchestrator struct {
	DB        *gorm.DB
	Registry  *Registry
	Persister BatchPersister
	Scorer    BatchScorer
	Logger    *log.Logger

	batchSize   int
	workers     int
	globalSlots chan struct{}
}

func NewOrchestrator(db *gorm.DB, registry *Registry, persister BatchPersister, scorer BatchScorer, cfg config.IngestConfig, logger *log.Logger) *Orchestrator {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	globalWorkers := cfg.GlobalWorkers
	if globalWorkers < workers {
		globalWorkers = workers
	}
	return &Orchestrator{
		DB:          db,
		Registry:    registry,
		Persister:   persister,
		Scorer:      scorer,
		Logger:      logger,
		batchSize:   batchSize,
		workers:     workers,
		globalSlots: make(chan struct{}, globalWorkers),
	}
}

// Run processes one upload to its terminal state. It is intended to run
// in a background goroutine; the initiating HTTP call returns the session
// id immediately. Row-level failures are tallied and skipped; only fatal
// conditions flip the session to error.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, file io.Reader, limit int) {
	if err := o.run(ctx, sessionID, file, limit); err != nil {
		o.Logger.Printf("Upload session %s failed: %v", sessionID, err)
		message := err.Error()
		o.Registry.Update(sessionID, func(snap *Snapshot) {
			snap.Status = StatusError
			snap.Error = message
		})
	}
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, file io.Reader, limit int) error {
	lookups, err := LoadLookups(o.DB)
	if err != nil {
		return &FatalIngestError{Stage: "load lookups", Err: err}
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return &FatalIngestError{Stage: "parse CSV file", Err: err}
	}

	startLine := 1
	if len(records) > 0 && IsHeaderRow(records[0]) {
		records = records[1:]
		startLine = 2
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	// The total is fixed before any batch runs so the progress bar is
	// accurate from the first update. It counts every syntactic row,
	// valid or not; saved counts only rows that reached storage.
	total := len(records)
	o.Registry.Update(sessionID, func(snap *Snapshot) {
		snap.Status = StatusProcessing
		snap.Total = total
	})

	var wg sync.WaitGroup
	sessionSlots := make(chan struct{}, o.workers)
	skipped := 0

	for start := 0; start < len(records); start += o.batchSize {
		end := start + o.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := make([]ParsedRow, 0, end-start)
		for i, record := range records[start:end] {
			line := startLine + start + i
			input, rowErr := ParseRow(line, record, lookups)
			if rowErr != nil {
				skipped++
				o.Logger.Printf("Session %s: skipping %v", sessionID, rowErr)
				continue
			}
			batch = append(batch, ParsedRow{Line: line, Input: input})
		}

		results, err := o.Persister.PersistBatch(ctx, batch)
		if err != nil {
			wg.Wait()
			return err
		}

		persisted := 0
		scoring := make([]ScoreLead, 0, len(results))
		for i, result := range results {
			if result.Err != nil {
				skipped++
				continue
			}
			persisted++
			scoring = append(scoring, ScoreLead{
				LeadID:   result.LeadID,
				Features: batch[i].Input.FeatureVector(),
			})
		}

		o.Registry.Update(sessionID, func(snap *Snapshot) {
			snap.Saved += persisted
		})

		if len(scoring) > 0 {
			wg.Add(1)
			go o.scoreAsync(ctx, sessionID, scoring, sessionSlots, &wg)
		}
	}

	wg.Wait()

	if skipped > 0 {
		o.Logger.Printf("Session %s: %d of %d rows skipped", sessionID, skipped, total)
	}
	o.Registry.Update(sessionID, func(snap *Snapshot) {
		snap.Status = StatusComplete
	})
	return nil
}

// scoreAsync scores one batch under both the per-session and the
// process-wide concurrency caps. Scoring failure never fails the upload:
// the leads stay persisted unscored and the session records the error.
func (o *Orchestrator) scoreAsync(ctx context.Context, sessionID string, leads []ScoreLead, sessionSlots chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	sessionSlots <- struct{}{}
	defer func() { <-sessionSlots }()
	o.globalSlots <- struct{}{}
	defer func() { <-o.globalSlots }()

	if err := o.Scorer.ScoreBatch(ctx, leads); err != nil {
		o.Logger.Printf("Session %s: scoring batch of %d leads failed: %v", sessionID, len(leads), err)
		message := err.Error()
		o.Registry.Update(sessionID, func(snap *Snapshot) {
			snap.Error = message
		})
	}
}

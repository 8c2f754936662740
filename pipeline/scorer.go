package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"leadnest/config"
	"leadnest/models"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"
)

// ScoreLead is one persisted lead submitted for scoring.
type ScoreLead struct {
	LeadID   uint                   `json:"lead_id"`
	Features map[string]interface{} `json:"features"`
}

type scoreRequest struct {
	Leads []ScoreLead `json:"leads"`
}

type scorePrediction struct {
	LeadID      uint    `json:"lead_id"`
	Probability float64 `json:"probability"`
}

type scoreResponse struct {
	Model       string            `json:"model"`
	Predictions []scorePrediction `json:"predictions"`
}

// Scorer calls the external scoring endpoint and records the returned
// probabilities. The retry policy is owned here, not by the model:
// transient failures (timeouts, 5xx) back off exponentially up to
// MaxAttempts; permanent failures (4xx, malformed body) are not retried.
type Scorer struct {
	DB      *gorm.DB
	Logger  *log.Logger
	client  *http.Client
	baseURL string

	maxBatch    int
	maxAttempts int
}

func NewScorer(db *gorm.DB, cfg config.ScoringConfig, logger *log.Logger) *Scorer {
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 100
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Scorer{
		DB:          db,
		Logger:      logger,
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:     cfg.BaseURL,
		maxBatch:    maxBatch,
		maxAttempts: maxAttempts,
	}
}

// ScoreBatch scores the given leads, writing one LeadScore row per lead
// on success. On failure the leads stay persisted and unscored; the
// returned error describes the last failure for the session record.
func (s *Scorer) ScoreBatch(ctx context.Context, leads []ScoreLead) error {
	for start := 0; start < len(leads); start += s.maxBatch {
		end := start + s.maxBatch
		if end > len(leads) {
			end = len(leads)
		}
		if err := s.scoreChunk(ctx, leads[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scorer) scoreChunk(ctx context.Context, chunk []ScoreLead) error {
	var result *scoreResponse

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.maxAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		resp, err := s.call(ctx, chunk)
		if err != nil {
			var scoringErr *ScoringError
			if errors.As(err, &scoringErr) && scoringErr.Permanent {
				return backoff.Permanent(err)
			}
			s.Logger.Printf("Scoring attempt failed, will retry: %v", err)
			return err
		}
		result = resp
		return nil
	}, policy)
	if err != nil {
		return err
	}

	scores := make([]models.LeadScore, 0, len(result.Predictions))
	for _, prediction := range result.Predictions {
		scores = append(scores, models.LeadScore{
			LeadID:   prediction.LeadID,
			Score:    prediction.Probability,
			ModelRef: result.Model,
		})
	}
	if len(scores) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).Create(&scores).Error; err != nil {
		return &FatalIngestError{Stage: "score", Err: err}
	}
	return nil
}

func (s *Scorer) call(ctx context.Context, chunk []ScoreLead) (*scoreResponse, error) {
	body, err := json.Marshal(scoreRequest{Leads: chunk})
	if err != nil {
		return nil, &ScoringError{Permanent: true, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, &ScoringError{Permanent: true, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return nil, &ScoringError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &ScoringError{StatusCode: resp.StatusCode, Err: fmt.Errorf("scoring endpoint unavailable")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ScoringError{Permanent: true, StatusCode: resp.StatusCode, Err: fmt.Errorf("scoring endpoint rejected the request")}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ScoringError{Err: err}
	}

	var decoded scoreResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &ScoringError{Permanent: true, Err: fmt.Errorf("malformed scoring response: %w", err)}
	}
	return &decoded, nil
}

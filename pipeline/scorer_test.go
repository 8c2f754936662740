package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadnest/config"
	"leadnest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoringConfig(baseURL string) config.ScoringConfig {
	return config.ScoringConfig{
		BaseURL:        baseURL,
		TimeoutSeconds: 2,
		MaxBatch:       100,
		MaxAttempts:    3,
	}
}

func scoreFixture(ids ...uint) []ScoreLead {
	leads := make([]ScoreLead, 0, len(ids))
	for _, id := range ids {
		leads = append(leads, ScoreLead{
			LeadID:   id,
			Features: map[string]interface{}{"age": 40, "balance": 100},
		})
	}
	return leads
}

func respondScores(w http.ResponseWriter, req scoreRequest) {
	resp := scoreResponse{Model: "propensity-v2"}
	for _, lead := range req.Leads {
		resp.Predictions = append(resp.Predictions, scorePrediction{
			LeadID:      lead.LeadID,
			Probability: 0.42,
		})
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestScoreBatchWritesScores(t *testing.T) {
	db := newTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		respondScores(w, req)
	}))
	defer server.Close()

	scorer := NewScorer(db, scoringConfig(server.URL), testLogger())
	require.NoError(t, scorer.ScoreBatch(context.Background(), scoreFixture(1, 2, 3)))

	var scores []models.LeadScore
	require.NoError(t, db.Order("lead_id").Find(&scores).Error)
	require.Len(t, scores, 3)
	assert.Equal(t, uint(1), scores[0].LeadID)
	assert.Equal(t, 0.42, scores[0].Score)
	assert.Equal(t, "propensity-v2", scores[0].ModelRef)
}

func TestScoreBatchRetriesTransientFailures(t *testing.T) {
	db := newTestDB(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		respondScores(w, req)
	}))
	defer server.Close()

	scorer := NewScorer(db, scoringConfig(server.URL), testLogger())
	require.NoError(t, scorer.ScoreBatch(context.Background(), scoreFixture(7)))

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "two 5xx then success")

	var count int64
	require.NoError(t, db.Model(&models.LeadScore{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestScoreBatchGivesUpAfterMaxAttempts(t *testing.T) {
	db := newTestDB(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	scorer := NewScorer(db, scoringConfig(server.URL), testLogger())
	err := scorer.ScoreBatch(context.Background(), scoreFixture(7))
	require.Error(t, err)

	var scoringErr *ScoringError
	require.ErrorAs(t, err, &scoringErr)
	assert.False(t, scoringErr.Permanent)
	assert.Equal(t, http.StatusInternalServerError, scoringErr.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "MaxAttempts bounds the retries")

	var count int64
	require.NoError(t, db.Model(&models.LeadScore{}).Count(&count).Error)
	assert.Zero(t, count, "no scores on failure")
}

func TestScoreBatchDoesNotRetryClientErrors(t *testing.T) {
	db := newTestDB(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	scorer := NewScorer(db, scoringConfig(server.URL), testLogger())
	err := scorer.ScoreBatch(context.Background(), scoreFixture(7))
	require.Error(t, err)

	var scoringErr *ScoringError
	require.ErrorAs(t, err, &scoringErr)
	assert.True(t, scoringErr.Permanent)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "permanent failures are not retried")
}

func TestScoreBatchDoesNotRetryMalformedResponse(t *testing.T) {
	db := newTestDB(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	scorer := NewScorer(db, scoringConfig(server.URL), testLogger())
	err := scorer.ScoreBatch(context.Background(), scoreFixture(7))
	require.Error(t, err)

	var scoringErr *ScoringError
	require.ErrorAs(t, err, &scoringErr)
	assert.True(t, scoringErr.Permanent)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestScoreBatchZeroMaxBatchStillAdvances(t *testing.T) {
	db := newTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		respondScores(w, req)
	}))
	defer server.Close()

	cfg := scoringConfig(server.URL)
	cfg.MaxBatch = 0
	scorer := NewScorer(db, cfg, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- scorer.ScoreBatch(context.Background(), scoreFixture(1, 2))
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ScoreBatch never finished with an unset max batch size")
	}

	var count int64
	require.NoError(t, db.Model(&models.LeadScore{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestScoreBatchZeroMaxAttemptsMakesOneAttempt(t *testing.T) {
	db := newTestDB(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := scoringConfig(server.URL)
	cfg.MaxAttempts = 0
	scorer := NewScorer(db, cfg, testLogger())

	err := scorer.ScoreBatch(context.Background(), scoreFixture(7))
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "an unset attempt budget must not underflow into endless retries")
}

func TestScoreBatchChunksByMaxBatch(t *testing.T) {
	db := newTestDB(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Leads), 2)
		respondScores(w, req)
	}))
	defer server.Close()

	cfg := scoringConfig(server.URL)
	cfg.MaxBatch = 2
	scorer := NewScorer(db, cfg, testLogger())
	require.NoError(t, scorer.ScoreBatch(context.Background(), scoreFixture(1, 2, 3, 4, 5)))

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	var count int64
	require.NoError(t, db.Model(&models.LeadScore{}).Count(&count).Error)
	assert.EqualValues(t, 5, count)
}

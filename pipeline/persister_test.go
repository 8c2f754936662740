package pipeline

import (
	"context"
	"log"
	"os"
	"testing"

	"leadnest/config"
	"leadnest/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func testLogger() *log.Logger {
	return log.New(os.Stdout, "TEST: ", log.LstdFlags)
}

func parsedRow(t *testing.T, line int, record []string, db *gorm.DB) ParsedRow {
	t.Helper()

	lookups, err := LoadLookups(db)
	require.NoError(t, err)
	input, rowErr := ParseRow(line, record, lookups)
	require.Nil(t, rowErr)
	return ParsedRow{Line: line, Input: input}
}

func TestPersistBatchCreatesLeadAndDetail(t *testing.T) {
	db := newTestDB(t)
	persister := NewPersister(db, testLogger())

	record := []string{
		"Jane Porter", "jane@example.com", "+3225551234", "41",
		"management", "married", "tertiary",
		"1500", "yes", "no", "cellular",
		"17", "may", "210", "2", "", "0", "success",
	}
	results, err := persister.PersistBatch(context.Background(), []ParsedRow{parsedRow(t, 2, record, db)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.NotZero(t, results[0].LeadID)

	var lead models.Lead
	require.NoError(t, db.Preload("Detail").First(&lead, results[0].LeadID).Error)
	assert.Equal(t, "jane@example.com", lead.Email)
	assert.Equal(t, 41, lead.Age)
	require.NotNil(t, lead.Detail)
	assert.Equal(t, 1500, lead.Detail.Balance)
	assert.True(t, lead.Detail.HousingLoan)
	assert.Equal(t, -1, lead.Detail.PreviousDays)
}

func TestPersistBatchUpsertIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	persister := NewPersister(db, testLogger())

	first := []string{
		"Jane Porter", "jane@example.com", "+3225551234", "41",
		"management", "married", "tertiary",
		"1500", "yes", "no", "cellular",
		"17", "may", "210", "2", "", "0", "success",
	}
	results, err := persister.PersistBatch(context.Background(), []ParsedRow{parsedRow(t, 2, first, db)})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	firstID := results[0].LeadID

	// Same email, changed identity and detail fields.
	second := []string{
		"Jane T. Porter", "jane@example.com", "+3225559999", "42",
		"technician", "married", "tertiary",
		"-200", "no", "yes", "telephone",
		"3", "jun", "95", "3", "12", "1", "failure",
	}
	results, err = persister.PersistBatch(context.Background(), []ParsedRow{parsedRow(t, 2, second, db)})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.Equal(t, firstID, results[0].LeadID, "re-upload must resolve to the same lead")

	var leadCount, detailCount int64
	require.NoError(t, db.Model(&models.Lead{}).Count(&leadCount).Error)
	require.NoError(t, db.Model(&models.LeadDetail{}).Count(&detailCount).Error)
	assert.EqualValues(t, 1, leadCount)
	assert.EqualValues(t, 1, detailCount, "detail is replaced, not appended")

	var lead models.Lead
	require.NoError(t, db.Preload("Detail").First(&lead, firstID).Error)
	assert.Equal(t, "Jane T. Porter", lead.Name)
	assert.Equal(t, 42, lead.Age)
	assert.Equal(t, -200, lead.Detail.Balance)
	assert.False(t, lead.Detail.HousingLoan)
	assert.True(t, lead.Detail.PersonalLoan)
	assert.Equal(t, 12, lead.Detail.PreviousDays)
}

func TestPersistBatchResurrectsSoftDeletedLead(t *testing.T) {
	db := newTestDB(t)
	persister := NewPersister(db, testLogger())

	record := []string{
		"Jane Porter", "jane@example.com", "+3225551234", "41",
		"management", "married", "tertiary",
		"1500", "yes", "no", "cellular",
		"17", "may", "210", "2", "", "0", "success",
	}
	results, err := persister.PersistBatch(context.Background(), []ParsedRow{parsedRow(t, 2, record, db)})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	firstID := results[0].LeadID

	require.NoError(t, db.Delete(&models.Lead{}, firstID).Error)
	var count int64
	require.NoError(t, db.Model(&models.Lead{}).Where("email = ?", "jane@example.com").Count(&count).Error)
	require.Zero(t, count, "soft-deleted lead must be invisible before the re-import")

	results, err = persister.PersistBatch(context.Background(), []ParsedRow{parsedRow(t, 2, record, db)})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.Equal(t, firstID, results[0].LeadID)

	// The re-import clears the tombstone, so the lead is queryable again.
	var lead models.Lead
	require.NoError(t, db.First(&lead, firstID).Error)
	assert.False(t, lead.DeletedAt.Valid)
}

func TestPersistBatchUnreachableStorageIsFatal(t *testing.T) {
	db := newTestDB(t)
	persister := NewPersister(db, testLogger())

	row := parsedRow(t, 2, []string{
		"Jane Porter", "jane@example.com", "", "41",
		"management", "married", "tertiary",
		"0", "no", "no", "cellular",
		"1", "jan", "10", "1", "", "0", "",
	}, db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = persister.PersistBatch(context.Background(), []ParsedRow{row})
	require.Error(t, err)
	var fatal *FatalIngestError
	assert.ErrorAs(t, err, &fatal)
}

package db

import (
	"compress/gzip"
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "behaviour.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrations(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	// idempotent
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	_, err = db.Exec(`SELECT custom FROM summaries`)
	assert.Error(t, err, "custom column should be dropped")

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	_, err = db.Exec(`SELECT count(*) FROM summaries`)
	assert.Error(t, err, "summaries should be dropped")

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateForce(3))
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db.SetClock(timeutil.NewTickingMockClock(start, time.Minute))
	ctx := context.Background()

	first, err := db.StartRun(ctx, "exp1")
	require.NoError(t, err)
	second, err := db.StartRun(ctx, "exp2")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, db.FinishRun(ctx, first, StatusSucceeded, "completed fight classification"))
	assert.Error(t, db.FinishRun(ctx, "no-such-run", StatusFailed, ""))

	runs, err := db.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].RunID, "newest first")
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)

	assert.Equal(t, "exp1", runs[1].Experiment)
	assert.Equal(t, StatusSucceeded, runs[1].Status)
	assert.Equal(t, "completed fight classification", runs[1].Outcome)
	require.NotNil(t, runs[1].FinishedAt)
	assert.True(t, runs[1].FinishedAt.After(runs[1].StartedAt))

	only, err := db.ListRuns(ctx, "exp1", 10)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, first, only[0].RunID)
}

func TestBoutsAndSummaries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	run, err := db.StartRun(ctx, "exp1")
	require.NoError(t, err)

	bouts := []*results.BoutRow{
		{Individual: "mouse", Measure: "freezing", Start: 40, Stop: 49, Duration: 10},
		{Individual: "mouse", Measure: "freezing", Start: 3, Stop: 5, Duration: 3},
	}
	require.NoError(t, db.InsertBouts(ctx, run, bouts))
	got, err := db.BoutsForRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, []*results.BoutRow{bouts[1], bouts[0]}, got)

	summary := []*results.SummaryRow{
		{Individual: "mouse", Measure: "SpeedMMperSec", Stat: "mean", Value: 12.5},
		{Individual: "mouse", Measure: "SpeedMMperSec", Stat: "std", Value: math.NaN()},
		{Individual: "mouse", Measure: "freezing", BinSec: 90, Bin: 0, Custom: true, Stat: "bout_count", Value: 1},
		{Individual: "mouse", Measure: "freezing", BinSec: 30, Bin: 1, Stat: "bout_count", Value: 2},
	}
	require.NoError(t, db.InsertSummary(ctx, run, summary))
	rows, err := db.SummaryForRun(ctx, run)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, 12.5, rows[0].Value)
	assert.True(t, math.IsNaN(rows[1].Value))
	assert.Equal(t, 30.0, rows[2].BinSec)
	assert.Equal(t, 1, rows[2].Bin)
	assert.False(t, rows[2].Custom)
	// custom bins sort after the regular ones
	assert.True(t, rows[3].Custom)
	assert.Equal(t, 90.0, rows[3].BinSec)

	// foreign keys are enforced
	assert.Error(t, db.InsertBouts(ctx, "missing-run", bouts))
}

func TestAdminRoutes(t *testing.T) {
	db := openTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	// access control may reject the request, but the routes must exist
	for _, path := range []string{"/debug/backup", "/debug/tailsql/"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEqual(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServeBackup(t *testing.T) {
	db := openTestDB(t)
	_, err := db.StartRun(context.Background(), "exp1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	db.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "backup-")

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Greater(t, len(data), 16)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}

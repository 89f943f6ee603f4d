package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/behaviour.report/internal/db"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/units"
)

func init() {
	monitoring.SetLogger(nil)
}

func setup(t *testing.T) (http.Handler, string) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "behaviour.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	run, err := store.StartRun(ctx, "cage1")
	require.NoError(t, err)
	require.NoError(t, store.InsertBouts(ctx, run, []*results.BoutRow{
		{Individual: "mouse", Measure: "freezing", Start: 10, Stop: 19, Duration: 10},
	}))
	require.NoError(t, store.InsertSummary(ctx, run, []*results.SummaryRow{
		{Individual: "mouse", Measure: "SpeedMMperSec", Stat: results.StatMean, Value: 250},
		{Individual: "mouse", Measure: "SpeedMMperSec", Stat: results.StatCount, Value: 40},
		{Individual: "mouse", Measure: "SpeedMMperSec", Stat: results.StatStd, Value: math.NaN()},
	}))
	require.NoError(t, store.FinishRun(ctx, run, db.StatusSucceeded, ""))

	return LoggingMiddleware(NewServer(store, units.MMPS).ServeMux()), run
}

func get(t *testing.T, h http.Handler, url string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestListRuns(t *testing.T) {
	h, run := setup(t)

	var runs []db.Run
	require.Equal(t, http.StatusOK, get(t, h, "/runs", &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0].RunID)
	assert.Equal(t, db.StatusSucceeded, runs[0].Status)

	runs = nil
	require.Equal(t, http.StatusOK, get(t, h, "/runs?experiment=other", &runs))
	assert.Empty(t, runs)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs?limit=x", nil))
}

func TestRunBouts(t *testing.T) {
	h, run := setup(t)
	var bouts []boutJSON
	require.Equal(t, http.StatusOK, get(t, h, "/runs/"+run+"/bouts", &bouts))
	assert.Equal(t, []boutJSON{{Individual: "mouse", Measure: "freezing", Start: 10, Stop: 19, Duration: 10}}, bouts)
}

func TestRunSummaryUnits(t *testing.T) {
	h, run := setup(t)

	var rows []summaryJSON
	require.Equal(t, http.StatusOK, get(t, h, "/runs/"+run+"/summary?units=cm_per_sec", &rows))
	require.Len(t, rows, 3)
	byStat := map[string]summaryJSON{}
	for _, r := range rows {
		byStat[r.Stat] = r
	}
	require.NotNil(t, byStat["mean"].Value)
	assert.Equal(t, 25.0, *byStat["mean"].Value)
	assert.Equal(t, units.CMPS, byStat["mean"].Units)
	// counts are unitless
	assert.Equal(t, 40.0, *byStat["count"].Value)
	assert.Empty(t, byStat["count"].Units)
	assert.Nil(t, byStat["std"].Value)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs/"+run+"/summary?units=furlongs", nil))
}

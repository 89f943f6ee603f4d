// Package api serves stored analysis runs as JSON.
package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/behaviour.report/internal/db"
	"github.com/banshee-data/behaviour.report/internal/monitoring"
	"github.com/banshee-data/behaviour.report/internal/results"
	"github.com/banshee-data/behaviour.report/internal/units"
)

type Server struct {
	db    *db.DB
	units string
}

// NewServer returns a server reading from store. Speed summaries are
// reported in defaultUnits unless a request asks for other units.
func NewServer(store *db.DB, defaultUnits string) *Server {
	return &Server{db: store, units: defaultUnits}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("[%d] %s %s %.1fms", lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs", s.listRuns)
	mux.HandleFunc("GET /runs/{id}/bouts", s.runBouts)
	mux.HandleFunc("GET /runs/{id}/summary", s.runSummary)
	return mux
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.db.ListRuns(r.Context(), r.URL.Query().Get("experiment"), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type boutJSON struct {
	Individual string `json:"individual"`
	Measure    string `json:"measure"`
	Start      int    `json:"start"`
	Stop       int    `json:"stop"`
	Duration   int    `json:"duration"`
}

func (s *Server) runBouts(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.BoutsForRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]boutJSON, len(rows))
	for i, b := range rows {
		out[i] = boutJSON(*b)
	}
	writeJSON(w, http.StatusOK, out)
}

type summaryJSON struct {
	Individual string   `json:"individual"`
	Measure    string   `json:"measure"`
	BinSec     float64  `json:"bin_sec"`
	Bin        int      `json:"bin"`
	Custom     bool     `json:"custom,omitempty"`
	Stat       string   `json:"stat"`
	Value      *float64 `json:"value"`
	Units      string   `json:"units,omitempty"`
}

// speedStats are the summary statistics that carry the measure's units.
var speedStats = map[string]bool{
	results.StatSum: true, results.StatMean: true, results.StatStd: true,
	results.StatMin: true, results.StatQ1: true, results.StatMedian: true,
	results.StatQ3: true, results.StatMax: true,
}

func (s *Server) runSummary(w http.ResponseWriter, r *http.Request) {
	target := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			writeJSONError(w, http.StatusBadRequest, "invalid units; valid options: "+units.GetValidUnitsString())
			return
		}
		target = u
	}
	rows, err := s.db.SummaryForRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]summaryJSON, len(rows))
	for i, row := range rows {
		v := row.Value
		sj := summaryJSON{Individual: row.Individual, Measure: row.Measure, BinSec: row.BinSec, Bin: row.Bin, Custom: row.Custom, Stat: row.Stat}
		if strings.HasPrefix(row.Measure, "SpeedMMperSec") && speedStats[row.Stat] {
			v = units.ConvertSpeed(v, target)
			sj.Units = target
		}
		if !math.IsNaN(v) {
			sj.Value = &v
		}
		out[i] = sj
	}
	writeJSON(w, http.StatusOK, out)
}

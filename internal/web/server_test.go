package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epl-xg-merge/internal/audit"
	"github.com/epl-xg-merge/internal/pipeline"
	"github.com/epl-xg-merge/internal/web/handlers"
)

const oddsCSV = `Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR
10/08/2019,Burnley,Southampton,3,0,H
10/08/2019,Man City,West Ham,5,0,H
17/08/2019,Arsenal,Burnley,2,1,H
18/08/2019,Leicester,Chelsea,1,1,D
`

const understatCSV = `date,team,h_a,scored,missed,xG,xGA,npxG,xpts,league,year
2019-08-10 00:00:00,Burnley,h,3,0,0.911,0.61,0.91,1.714,EPL,2019
2019-08-10 00:00:00,Southampton,a,0,3,0.61,0.911,0.61,0.93,EPL,2019
2019-08-11 00:00:00,Manchester City,h,5,0,3.14,0.2,2.4,2.87,EPL,2019
2019-08-11 00:00:00,West Ham,a,0,5,0.2,3.14,0.2,0.1,EPL,2019
2019-08-18 00:00:00,Leicester,h,1,1,2.1,0.8,1.3,2.0,EPL,2019
2019-08-18 00:00:00,Chelsea FC,a,1,1,0.8,2.1,0.8,0.7,EPL,2019
`

type fakeReviewStore struct {
	run       audit.Run
	hasRun    bool
	rows      []audit.CandidateRow
	decisions map[int64]string
	decidedBy string
}

func (f *fakeReviewStore) LatestRun(ctx context.Context, kind string) (audit.Run, bool, error) {
	if !f.hasRun || f.run.Kind != kind {
		return audit.Run{}, false, nil
	}
	return f.run, true, nil
}

func (f *fakeReviewStore) Candidates(ctx context.Context, runID uuid.UUID, decision string) ([]audit.CandidateRow, error) {
	var out []audit.CandidateRow
	for _, r := range f.rows {
		if r.RunID == runID && r.Decision == decision {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReviewStore) RecordDecision(ctx context.Context, localDebug bool, candidateID int64, decision, decidedBy string) error {
	for _, r := range f.rows {
		if r.ID == candidateID {
			f.decisions[candidateID] = decision
			f.decidedBy = decidedBy
			return nil
		}
	}
	return errors.Wrapf(audit.ErrCandidateNotFound, "candidate %d", candidateID)
}

func newTestState(t *testing.T) *handlers.State {
	t.Helper()
	root := t.TempDir()
	oddsDir := filepath.Join(root, "odds")
	require.NoError(t, os.MkdirAll(oddsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(oddsDir, "2019-2020.csv"), []byte(oddsCSV), 0644))
	understat := filepath.Join(root, "understat.csv")
	require.NoError(t, os.WriteFile(understat, []byte(understatCSV), 0644))

	runner := pipeline.NewRunner(nil, nil, nil)
	report, err := runner.Merge(context.Background(), false, pipeline.MergeOptions{
		OddsDir:       oddsDir,
		UnderstatFile: understat,
	})
	require.NoError(t, err)
	return handlers.NewState(runner, report)
}

func newTestServer(t *testing.T, config *Config, store handlers.ReviewStore) http.Handler {
	t.Helper()
	if config == nil {
		config = DefaultConfig()
	}
	return NewServer(config, newTestState(t), store).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestStatsEndpoint(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec, body := do(t, h, "GET", "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["total_records"])
	assert.Equal(t, float64(2), body["matched_records"])
	assert.Equal(t, float64(2), body["unmatched_records"])
	assert.Equal(t, 0.5, body["coverage_rate"])
	assert.Equal(t, float64(3), body["fixtures"])
	assert.Equal(t, float64(1), body["odds_files"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecordsEndpoints(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec, body := do(t, h, "GET", "/api/records?status=unmatched", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total"])
	records := body["records"].([]interface{})
	require.Len(t, records, 2)
	assert.Equal(t, "Arsenal", records[0].(map[string]interface{})["home_team"])
	assert.Nil(t, records[0].(map[string]interface{})["home_xg"])

	_, body = do(t, h, "GET", "/api/records?team=Manchester+United", "")
	assert.Equal(t, float64(0), body["total"])

	_, body = do(t, h, "GET", "/api/records?team=Burnley&limit=1", "")
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["records"], 1)

	rec, body = do(t, h, "GET", "/api/records/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["matched"])
	assert.Equal(t, 0.91, body["home_xg"])
	assert.Equal(t, "2019-08-10", body["date"])

	rec, _ = do(t, h, "GET", "/api/records/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, "GET", "/api/records?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoints(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec, body := do(t, h, "GET", "/api/records/4/candidates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	candidates := body["candidates"].([]interface{})
	require.Len(t, candidates, 1)
	best := candidates[0].(map[string]interface{})
	assert.Equal(t, "Chelsea FC", best["away_team"])
	assert.Equal(t, "high", best["bucket"])
	assert.Equal(t, float64(1), best["tier"])

	rec, body = do(t, h, "GET", "/api/search?date=18/08/2019&home=Leicester&away=Chelsea&home_goals=1&away_goals=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["candidates"], 1)

	rec, _ = do(t, h, "GET", "/api/search?date=18/08/2019&home=Leicester&away=Chelsea&home_goals=x&away_goals=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, "POST", "/api/search/unmatched", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["searched"])
	assert.Equal(t, float64(1), body["found"])
	assert.Equal(t, []interface{}{float64(3)}, body["not_found"])
}

func TestSearchDisabled(t *testing.T) {
	config := DefaultConfig()
	config.Features.SearchEnabled = false
	h := newTestServer(t, config, nil)

	rec, _ := do(t, h, "GET", "/api/records/4/candidates", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewEndpoints(t *testing.T) {
	runID := uuid.New()
	store := &fakeReviewStore{
		run:    audit.Run{ID: runID, Kind: audit.KindSearch, StartedAt: time.Now()},
		hasRun: true,
		rows: []audit.CandidateRow{
			{ID: 7, RunID: runID, TemplateIndex: 4, FoundAway: "Chelsea FC", Confidence: 1, Decision: audit.DecisionPending},
		},
		decisions: map[int64]string{},
	}
	h := newTestServer(t, nil, store)

	rec, body := do(t, h, "GET", "/api/runs/latest?kind=search", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runID.String(), body["id"])

	rec, _ = do(t, h, "GET", "/api/runs/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, h, "GET", "/api/runs/"+runID.String()+"/candidates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["candidates"], 1)

	rec, _ = do(t, h, "GET", "/api/runs/not-a-uuid/candidates", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, "POST", "/api/candidates/7/accept", `{"decided_by":"analyst"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.DecisionAccepted, body["decision"])
	assert.Equal(t, audit.DecisionAccepted, store.decisions[7])
	assert.Equal(t, "analyst", store.decidedBy)

	rec, _ = do(t, h, "POST", "/api/candidates/7/reject", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.DecisionRejected, store.decisions[7])
	assert.NotEmpty(t, store.decidedBy)

	rec, _ = do(t, h, "POST", "/api/candidates/8/accept", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, "POST", "/api/candidates/7/accept", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewDisabled(t *testing.T) {
	config := DefaultConfig()
	config.Features.ReviewEnabled = false
	store := &fakeReviewStore{decisions: map[int64]string{}}
	h := newTestServer(t, config, store)

	rec, _ := do(t, h, "POST", "/api/candidates/7/accept", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthentication(t *testing.T) {
	config := DefaultConfig()
	config.Auth.Enabled = true
	config.Auth.APIKey = "secret"
	h := newTestServer(t, config, nil)

	rec, _ := do(t, h, "GET", "/api/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("API_KEY", "k")
	t.Setenv("REVIEW_ENABLED", "false")

	c := ConfigFromEnv()
	assert.Equal(t, 9090, c.Server.Port)
	assert.True(t, c.Auth.Enabled)
	assert.False(t, c.Features.ReviewEnabled)
	assert.True(t, c.Features.SearchEnabled)
}

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/skyplan/core/runlog"
	"github.com/kilianp07/skyplan/core/sky"
	"github.com/kilianp07/skyplan/pkg/export"
)

func TestHandlerPlansThenListsRuns(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Token = "tok"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	hp, err := sky.NewHEALPix(16)
	require.NoError(t, err)
	body := fmt.Sprintf(`{"nside":16,"cells":[{"id":%d,"prob":0.9}]}`, hp.Pixel(45, 30))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/plans", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc export.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.NotEmpty(t, doc.Plan.Entries)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/api/runs?telescope_id=T1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	var recs []runlog.Record
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, doc.Plan.RunID, recs[0].RunID)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/api/runs/"+doc.Plan.RunID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	respRun, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer respRun.Body.Close()
	require.Equal(t, http.StatusOK, respRun.StatusCode)

	resp3, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)

	resp4, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp4.Body.Close()
	assert.Equal(t, http.StatusOK, resp4.StatusCode)
}

func TestHandlerRejectsWrongMethodAndToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Token = "tok"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/plans")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

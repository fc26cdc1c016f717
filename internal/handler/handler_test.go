package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nvdiff/internal/codec"
	"nvdiff/internal/domain"
	"nvdiff/internal/ledger"
	"nvdiff/internal/repository"
	"nvdiff/internal/service"
)

const nid = "0123456789abcdef0123456789abcdef"

var (
	t1 = time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	t2 = time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)
)

func newServer(t *testing.T) (*http.ServeMux, *service.ChangeService) {
	t.Helper()
	l, err := ledger.New(repository.NewMemory())
	require.NoError(t, err)
	svc := service.NewChangeService(l, nil, nil)

	snap := domain.NewSnapshot("nb", t1)
	e := domain.NewLinearElement("1", domain.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	e.NID = nid
	e.SetAttribute("namebody", "Main")
	snap.AddElement(*e)
	_, err = svc.Baseline(context.Background(), snap)
	require.NoError(t, err)

	next := domain.NewSnapshot("nb", t2)
	e2 := domain.NewLinearElement("1", domain.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	e2.SetAttribute("namebody", "King")
	next.AddElement(*e2)
	prev := l.Snapshot("nb", t1)
	prev.Elements[0].Key = "1"
	_, err = svc.RunCycle(context.Background(), prev, next, []domain.Pair{{Old: "1", New: "1"}})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewLedgerHandler(svc, nil).Register(mux)
	return mux, svc
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetFeature(t *testing.T) {
	mux, _ := newServer(t)

	tests := []struct {
		name     string
		path     string
		status   int
		namebody string
	}{
		{"before the change", "/api/nids/" + nid + "?as_of=2021-06-01", http.StatusOK, "Main"},
		{"after the change", "/api/nids/" + nid + "?as_of=2022-06-01", http.StatusOK, "King"},
		{"defaults to now", "/api/nids/" + nid, http.StatusOK, "King"},
		{"before the addition", "/api/nids/" + nid + "?as_of=2020-01-01", http.StatusNotFound, ""},
		{"unknown nid", "/api/nids/ffffffffffffffffffffffffffffffff", http.StatusNotFound, ""},
		{"bad as_of", "/api/nids/" + nid + "?as_of=yesterday", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(mux, tt.path)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				var e ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
				assert.NotEmpty(t, e.Error)
				return
			}
			var f domain.Feature
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
			assert.Equal(t, tt.namebody, f.Attributes["namebody"])
		})
	}
}

func TestGetHistory(t *testing.T) {
	mux, _ := newServer(t)

	rec := get(mux, "/api/nids/"+nid+"/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []domain.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EffectAddition, entries[0].Effect)
	assert.Equal(t, domain.EffectDescriptiveModification, entries[1].Effect)

	assert.Equal(t, http.StatusNotFound, get(mux, "/api/nids/nope/history").Code)
}

func TestGetDataset(t *testing.T) {
	mux, _ := newServer(t)

	rec := get(mux, "/api/datasets/nb?as_of=2021-06-01")
	require.Equal(t, http.StatusOK, rec.Code)
	snap, err := codec.NewJSONCodec().Parse(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	require.Len(t, snap.Elements, 1)
	assert.Equal(t, domain.NID(nid), snap.Elements[0].NID)
	assert.Equal(t, "Main", snap.Elements[0].Attributes["namebody"])
}

func TestGetLastCycle(t *testing.T) {
	mux, _ := newServer(t)

	rec := get(mux, "/api/datasets/nb/last")
	require.Equal(t, http.StatusOK, rec.Code)
	var last LastCycleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
	assert.NotEmpty(t, last.CycleID)
	assert.True(t, last.Timestamp.Equal(t2))

	assert.Equal(t, http.StatusNotFound, get(mux, "/api/datasets/on/last").Code)
}

func TestHealth(t *testing.T) {
	mux, svc := newServer(t)

	rec := get(mux, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, svc.Ledger().Len(), body["entries"])
}

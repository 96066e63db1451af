package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/ingest"
	"github.com/couchcryptid/hurricane-risk-service/internal/places"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

type fakeReady struct{ err error }

func (f *fakeReady) CheckReadiness(context.Context) error { return f.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer serves the embedded demo storm. withSnapshot=false leaves the
// holder empty, modeling the window before the first ingestion.
func newTestServer(t *testing.T, withSnapshot bool, ready error) *Server {
	t.Helper()

	holder := &forecast.Holder{}
	if withSnapshot {
		bundle, err := ingest.NewDemoSource().Fetch(context.Background())
		require.NoError(t, err)
		store, err := forecast.NewStore(bundle)
		require.NoError(t, err)
		holder.Swap(store, "demo", time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC))
	}

	engine := query.NewEngine(nil, nil, testLogger(), nil)
	service := places.NewService(engine, holder, risk.DefaultWeights(),
		[]places.Place{{ID: "tampa", Name: "Tampa", Category: places.CategoryHome, Lat: 27.9506, Lon: -82.4572, Coastal: true}},
		[]places.County{{ID: "hillsborough", Name: "Hillsborough", Lat: 27.9, Lon: -82.35, Coastal: true}},
		4, testLogger())

	return NewServer(":0", holder, engine, service, risk.DefaultWeights(), &fakeReady{err: ready}, testLogger())
}

func doRequest(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body map[string]any
	if len(rec.Body.Bytes()) > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, false, nil)
	rec, body := doRequest(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadyz(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, body := doRequest(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyz_NotReady(t *testing.T) {
	srv := newTestServer(t, false, errors.New("no forecast snapshot ingested yet"))
	rec, body := doRequest(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Contains(t, body["error"], "no forecast snapshot")
}

func TestStorm(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, body := doRequest(t, srv, "/v1/storm")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "AL092025", body["storm_id"])
	assert.Equal(t, "Demo", body["name"])
	assert.Equal(t, "demo", body["source"])
	assert.NotEmpty(t, body["generation"])
	assert.Len(t, body["timeline"], 6)
}

func TestStorm_NoSnapshot(t *testing.T) {
	srv := newTestServer(t, false, nil)
	rec, body := doRequest(t, srv, "/v1/storm")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no forecast snapshot", body["error"])
}

func TestRisk(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, body := doRequest(t, srv, "/v1/risk?lat=27.9506&lon=-82.4572&coastal=true")
	require.Equal(t, http.StatusOK, rec.Code)

	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	score, ok := result["score"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 10.0)

	bucket, ok := body["bucket"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, []string{"danger", "warn", "watch", "calm"}, bucket["class"])

	approach, ok := body["approach"].(map[string]any)
	require.True(t, ok, "closest approach included in the payload")
	dist, ok := approach["distance_km"].(float64)
	require.True(t, ok)
	assert.Greater(t, dist, 0.0)
	assert.Less(t, dist, 500.0, "demo track passes near Tampa")
}

func TestRisk_ParameterValidation(t *testing.T) {
	srv := newTestServer(t, true, nil)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing lat", "/v1/risk?lon=-82", "lat must be a number"},
		{"lat out of range", "/v1/risk?lat=91&lon=-82", "lat must be a number"},
		{"lon not numeric", "/v1/risk?lat=27&lon=west", "lon must be a number"},
		{"lon out of range", "/v1/risk?lat=27&lon=-190", "lon must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doRequest(t, srv, tt.path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, body["error"], tt.want)
		})
	}
}

func TestRisk_NoSnapshot(t *testing.T) {
	srv := newTestServer(t, false, nil)
	rec, _ := doRequest(t, srv, "/v1/risk?lat=27&lon=-82")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImpacts(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, body := doRequest(t, srv, "/v1/impacts")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "AL092025", body["storm_id"])
	impacts, ok := body["impacts"].([]any)
	require.True(t, ok)
	require.Len(t, impacts, 1)

	groups, ok := body["groups"].([]any)
	require.True(t, ok)
	require.Len(t, groups, 1)
	group := groups[0].(map[string]any)
	assert.Equal(t, "Home", group["category"])
	assert.Equal(t, float64(1), group["count"])
}

func TestCounties(t *testing.T) {
	srv := newTestServer(t, true, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/counties", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var counties []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counties))
	require.Len(t, counties, 1)
	county := counties[0]["county"].(map[string]any)
	assert.Equal(t, "hillsborough", county["id"])
	assert.Contains(t, counties[0], "score")
	assert.Contains(t, counties[0], "bucket")
}

func TestArea(t *testing.T) {
	srv := newTestServer(t, true, nil)
	rec, body := doRequest(t, srv, "/v1/area?lat=27.9506&lon=-82.4572&radius_km=50")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 50.0, body["radius_km"])
	assert.Contains(t, body, "max_score")
	assert.Contains(t, body, "bucket")
}

func TestArea_RadiusValidation(t *testing.T) {
	srv := newTestServer(t, true, nil)

	for _, raw := range []string{"0", "-10", "501", "wide"} {
		rec, body := doRequest(t, srv, "/v1/area?lat=27&lon=-82&radius_km="+raw)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "radius_km=%s", raw)
		assert.Contains(t, body["error"], "radius_km", "radius_km=%s", raw)
	}

	// Missing radius falls back to the default rather than erroring.
	rec, body := doRequest(t, srv, "/v1/area?lat=27&lon=-82")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultAreaRadiusKm, body["radius_km"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, true, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/risk?lat=27&lon=-82", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestParsePoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/risk?lat=27.5&lon=-82.25", nil)
	rec := httptest.NewRecorder()

	pt, ok := parsePoint(rec, req)
	require.True(t, ok)
	assert.Equal(t, orb.Point{-82.25, 27.5}, pt, "lon before lat")
}

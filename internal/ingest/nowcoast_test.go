package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
)

const mapServiceMeta = `{"layers":[
	{"id":0,"name":"Forecast Points"},
	{"id":1,"name":"Forecast Track"},
	{"id":2,"name":"Forecast Cone of Uncertainty"},
	{"id":3,"name":"Forecast Wind Radii"},
	{"id":7,"name":"Watches and Warnings"},
	{"id":9,"name":"Arrival Time of Tropical Storm Force Winds - Most Likely"},
	{"id":10,"name":"Arrival Time of Tropical Storm Force Winds - Earliest Reasonable"}
]}`

// newMapService serves a minimal ArcGIS-shaped map service: layer metadata
// at the root, GeoJSON for attribute queries, and Esri JSON for point
// identifies.
func newMapService(t *testing.T) *httptest.Server {
	t.Helper()

	emptyFC := `{"type":"FeatureCollection","features":[]}`
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("f") == "pjson" {
			w.Write([]byte(mapServiceMeta))
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/0/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("where"), "stormid='AL092025'")
		w.Write([]byte(mirrorPointsJSON))
	})
	mux.HandleFunc("/3/query", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mirrorWindJSON))
	})
	for _, path := range []string{"/1/query", "/2/query"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(emptyFC))
		})
	}
	mux.HandleFunc("/7/query", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("f") == "json" {
			// Point identify: covered only west of -81.
			lon := strings.Split(r.URL.Query().Get("geometry"), ",")[0]
			if strings.HasPrefix(lon, "-82") {
				w.Write([]byte(`{"features":[{"attributes":{"prodtype":"Hurricane Warning"}}]}`))
				return
			}
			w.Write([]byte(`{"features":[]}`))
			return
		}
		w.Write([]byte(emptyFC))
	})
	for _, h := range []struct {
		path    string
		arrival string
	}{
		{"/9/query", "2025-08-16T06:00:00Z"},
		{"/10/query", "2025-08-16T00:00:00Z"},
	} {
		mux.HandleFunc(h.path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("f") == "json" {
				fmt.Fprintf(w, `{"features":[{"attributes":{"validtime":%q}}]}`, h.arrival)
				return
			}
			w.Write([]byte(emptyFC))
		})
	}
	return httptest.NewServer(mux)
}

func TestMapClient_LayerDiscovery(t *testing.T) {
	srv := newMapService(t)
	defer srv.Close()

	c := NewMapClient(srv.URL, 5*time.Second, testLogger())
	ids, err := c.Layers(context.Background())
	require.NoError(t, err)

	require.NotNil(t, ids.Points)
	assert.Equal(t, 0, *ids.Points)
	require.NotNil(t, ids.Track)
	assert.Equal(t, 1, *ids.Track)
	require.NotNil(t, ids.Cone)
	assert.Equal(t, 2, *ids.Cone)
	require.NotNil(t, ids.Wind)
	assert.Equal(t, 3, *ids.Wind)
	require.NotNil(t, ids.Warnings)
	assert.Equal(t, 7, *ids.Warnings)
	require.NotNil(t, ids.ArrivalML)
	assert.Equal(t, 9, *ids.ArrivalML)
	require.NotNil(t, ids.ArrivalER)
	assert.Equal(t, 10, *ids.ArrivalER)

	// Discovery is cached: a second call must not refetch.
	srv.Close()
	again, err := c.Layers(context.Background())
	require.NoError(t, err)
	assert.Same(t, ids, again)
}

func TestMapClient_LayerDiscoveryEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"layers":[]}`))
	}))
	defer srv.Close()

	c := NewMapClient(srv.URL, 5*time.Second, testLogger())
	_, err := c.Layers(context.Background())
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestMapClient_FetchStorm(t *testing.T) {
	srv := newMapService(t)
	defer srv.Close()

	c := NewMapClient(srv.URL, 5*time.Second, testLogger())
	b, err := c.FetchStorm(context.Background(), StormSummary{ID: "AL092025", Name: "Milton", Basin: "AL", Year: 2025})
	require.NoError(t, err)

	assert.Equal(t, "AL092025", b.StormID)
	assert.Equal(t, "Milton", b.Name)
	assert.Len(t, b.Track, 2, "forecast points drive the track")
	assert.Len(t, b.Timeline, 2, "timeline comes from timed points")
	assert.Len(t, b.Layers[forecast.LayerWind], 2)
	assert.Empty(t, b.Layers[forecast.LayerCone], "empty layers are omitted")
}

func TestMapClient_FetchStormNoPoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mapServiceMeta))
	})
	mux.HandleFunc("/0/query", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewMapClient(srv.URL, 5*time.Second, testLogger())
	_, err := c.FetchStorm(context.Background(), StormSummary{ID: "AL092025"})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMapClient_WarningAt(t *testing.T) {
	srv := newMapService(t)
	defer srv.Close()

	c := NewMapClient(srv.URL, 5*time.Second, testLogger())

	covered, err := c.WarningAt(context.Background(), orb.Point{-82.5, 27.9})
	require.NoError(t, err)
	assert.Equal(t, "Hurricane Warning", covered)

	outside, err := c.WarningAt(context.Background(), orb.Point{-70.0, 35.0})
	require.NoError(t, err)
	assert.Empty(t, outside)
}

func TestMapClient_ArrivalAt(t *testing.T) {
	srv := newMapService(t)
	defer srv.Close()

	c := NewMapClient(srv.URL, 5*time.Second, testLogger())

	ml, err := c.ArrivalAt(context.Background(), orb.Point{-82, 27}, query.ArrivalMostLikely)
	require.NoError(t, err)
	assert.True(t, ml.Equal(time.Date(2025, time.August, 16, 6, 0, 0, 0, time.UTC)))

	er, err := c.ArrivalAt(context.Background(), orb.Point{-82, 27}, query.ArrivalEarliest)
	require.NoError(t, err)
	assert.True(t, er.Before(ml), "earliest-reasonable precedes most-likely")
}

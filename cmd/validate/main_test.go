package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRun_EmbeddedDemoPasses(t *testing.T) {
	assert.Equal(t, 0, run("../../internal/ingest/demo_storm.json"))
}

func TestRun_MissingFile(t *testing.T) {
	assert.Equal(t, 1, run(filepath.Join(t.TempDir(), "nope.json")))
}

// A bundle with no parsable valid-times anywhere ends up with an empty
// timeline. The validator must report that as a failure, not panic when the
// scoring phase tries to pin the clock.
func TestRun_EmptyTimelineFailsCleanly(t *testing.T) {
	path := writeBundle(t, `{
		"id": "AL992025",
		"name": "Untimed",
		"layers": {
			"wind": {"type": "FeatureCollection", "features": [{
				"type": "Feature",
				"properties": {"RADII": 34},
				"geometry": {"type": "Polygon", "coordinates": [[[-81,24],[-79,24],[-79,26],[-81,26],[-81,24]]]}
			}]},
			"track": {"type": "FeatureCollection", "features": [{
				"type": "Feature",
				"properties": {},
				"geometry": {"type": "LineString", "coordinates": [[-79,24],[-80,25]]}
			}]}
		}
	}`)

	assert.Equal(t, 1, run(path))
}

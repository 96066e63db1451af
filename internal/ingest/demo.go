package ingest

import (
	"context"
	_ "embed"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
)

// demoBundleJSON is the offline demo storm, regenerated by cmd/gendemo.
//
//go:embed demo_storm.json
var demoBundleJSON []byte

// DemoSource serves the embedded offline bundle. It is the terminal element
// of every chain: it cannot fail at runtime short of a corrupted build.
type DemoSource struct{}

// NewDemoSource returns the embedded-bundle source.
func NewDemoSource() *DemoSource { return &DemoSource{} }

func (s *DemoSource) Name() string { return "demo" }

// Fetch decodes the embedded bundle. Deterministic: repeated calls yield
// identical bundles.
func (s *DemoSource) Fetch(_ context.Context) (*forecast.Bundle, error) {
	return ParseBundle(demoBundleJSON)
}

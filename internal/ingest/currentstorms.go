package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// StormSummary is one entry of the active-storm index.
type StormSummary struct {
	ID    string
	Name  string
	Basin string
	Year  int
}

// IndexClient fetches and decodes the NHC CurrentStorms.json index.
type IndexClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewIndexClient creates a client for the storm index endpoint.
func NewIndexClient(url string, timeout time.Duration, logger *slog.Logger) *IndexClient {
	return &IndexClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ActiveStorms fetches the index and returns the active storms in listing
// order. An empty index is ErrNoStorms.
func (c *IndexClient) ActiveStorms(ctx context.Context) ([]StormSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create index request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch storm index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("storm index: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read storm index: %w", err)
	}
	return decodeStormIndex(data)
}

// The index has appeared in two shapes in the wild. Rather than chains of
// optional-field fallbacks, each entry is probed for its variant and handed
// to exactly one normalizer.
//
// Nested (current NHC reference format):
//
//	{"activeStorms":[{"storm":{"id":...,"name":...,"basin":...,"year":...,"stormNumber":...}}]}
//
// Flat (older mirrors):
//
//	{"storms":[{"stormId":...,"stormName":...,"basin":...,"year":...}]}

type nestedIndexEntry struct {
	Storm struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Basin       string `json:"basin"`
		Year        int    `json:"year"`
		StormNumber int    `json:"stormNumber"`
		Key         string `json:"key"`
	} `json:"storm"`
}

type flatIndexEntry struct {
	ID        string `json:"id"`
	StormID   string `json:"stormId"`
	Name      string `json:"name"`
	StormName string `json:"stormName"`
	Basin     string `json:"basin"`
	Year      int    `json:"year"`
}

func decodeStormIndex(data []byte) ([]StormSummary, error) {
	var envelope struct {
		ActiveStorms []json.RawMessage `json:"activeStorms"`
		Storms       []json.RawMessage `json:"storms"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode storm index: %w", err)
	}

	entries := envelope.ActiveStorms
	if len(entries) == 0 {
		entries = envelope.Storms
	}
	if len(entries) == 0 {
		return nil, ErrNoStorms
	}

	storms := make([]StormSummary, 0, len(entries))
	for _, raw := range entries {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("decode index entry: %w", err)
		}

		var (
			s  StormSummary
			ok bool
		)
		if _, nested := probe["storm"]; nested {
			s, ok = decodeNestedEntry(raw)
		} else {
			s, ok = decodeFlatEntry(raw)
		}
		if !ok {
			return nil, fmt.Errorf("index entry matches no known schema: %w", ErrSchemaMismatch)
		}
		storms = append(storms, s)
	}
	return storms, nil
}

func decodeNestedEntry(raw json.RawMessage) (StormSummary, bool) {
	var e nestedIndexEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return StormSummary{}, false
	}

	id := e.Storm.ID
	if e.Storm.StormNumber > 0 && e.Storm.Basin != "" && e.Storm.Year > 0 {
		id = fmt.Sprintf("%s%02d%d", e.Storm.Basin, e.Storm.StormNumber, e.Storm.Year)
	} else if id == "" {
		id = e.Storm.Key
	}
	if id == "" {
		return StormSummary{}, false
	}
	return StormSummary{
		ID:    id,
		Name:  orDefault(e.Storm.Name, "Storm"),
		Basin: e.Storm.Basin,
		Year:  e.Storm.Year,
	}, true
}

func decodeFlatEntry(raw json.RawMessage) (StormSummary, bool) {
	var e flatIndexEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return StormSummary{}, false
	}

	id := e.StormID
	if id == "" {
		id = e.ID
	}
	if id == "" {
		return StormSummary{}, false
	}
	name := e.Name
	if name == "" {
		name = e.StormName
	}
	return StormSummary{
		ID:    id,
		Name:  orDefault(name, "Storm"),
		Basin: e.Basin,
		Year:  e.Year,
	}, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

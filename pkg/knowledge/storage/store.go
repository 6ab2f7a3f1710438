// Package storage persists assembled entity networks. The JSON store
// writes one file per case; the Neo4j store mirrors the network into a
// property graph for querying.
package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"

	"github.com/lexgraph/lexgraph/pkg/knowledge"
)

// GraphStore persists and recalls entity networks by case id
type GraphStore interface {
	SaveNetwork(ctx context.Context, network *knowledge.EntityNetwork) error
	LoadNetwork(ctx context.Context, caseID string) (*knowledge.EntityNetwork, error)
}

var unsafePathRe = regexp.MustCompile(`[^A-Za-z0-9._\-]`)

// JSONGraphStore writes each case's network to <dir>/<case>.json
type JSONGraphStore struct {
	dir string
}

// NewJSONGraphStore creates a store rooted at dir, created on first save
func NewJSONGraphStore(dir string) *JSONGraphStore {
	return &JSONGraphStore{dir: dir}
}

// SaveNetwork writes the network, replacing any previous file for the
// case
func (s *JSONGraphStore) SaveNetwork(_ context.Context, network *knowledge.EntityNetwork) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "create store directory")
	}

	data, err := json.MarshalIndent(network, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode network")
	}

	path := s.pathFor(network.CaseID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// LoadNetwork reads a case's network back
func (s *JSONGraphStore) LoadNetwork(_ context.Context, caseID string) (*knowledge.EntityNetwork, error) {
	path := s.pathFor(caseID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var network knowledge.EntityNetwork
	if err := json.Unmarshal(data, &network); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &network, nil
}

// Cases lists the case ids with a stored network
func (s *JSONGraphStore) Cases() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "list store directory")
	}

	cases := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		cases = append(cases, name[:len(name)-len(".json")])
	}
	return cases, nil
}

func (s *JSONGraphStore) pathFor(caseID string) string {
	safe := unsafePathRe.ReplaceAllString(caseID, "_")
	if safe == "" {
		safe = "case"
	}
	return filepath.Join(s.dir, safe+".json")
}

package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/pkg/errors"
)

// GraphStore persists built investigation graphs
type GraphStore interface {
	// StoreGraph replaces the stored graph of an investigation
	StoreGraph(ctx context.Context, investigationID string, g *graph.Graph) error

	// LoadGraph loads the stored graph of an investigation
	LoadGraph(ctx context.Context, investigationID string) (*graph.Graph, error)
}

// JSONGraphStore keeps one JSON file per investigation in a directory
type JSONGraphStore struct {
	dir string
}

// NewJSONGraphStore creates a new JSON graph store rooted at dir
func NewJSONGraphStore(dir string) *JSONGraphStore {
	return &JSONGraphStore{
		dir: dir,
	}
}

// Path returns the file used for an investigation
func (s *JSONGraphStore) Path(investigationID string) string {
	return filepath.Join(s.dir, fileName(investigationID)+".json")
}

// StoreGraph writes the graph as indented JSON. The file is replaced
// atomically so readers never observe a partial write.
func (s *JSONGraphStore) StoreGraph(ctx context.Context, investigationID string, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create graph directory %s", s.dir)
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode graph")
	}

	path := s.Path(investigationID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// LoadGraph reads a graph written by StoreGraph. A missing file yields an
// error matching os.ErrNotExist.
func (s *JSONGraphStore) LoadGraph(ctx context.Context, investigationID string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(investigationID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var g graph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return &g, nil
}

// fileName keeps letters, digits, '-' and '_' so ids cannot escape the directory
func fileName(investigationID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, investigationID)
	if name == "" {
		return "default"
	}
	return name
}

package storage

import (
	"context"
	"io"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	_ GraphStore = MultiGraphStore(nil)
	_ io.Closer  = (*Neo4jGraphStore)(nil)
)

// MultiGraphStore writes every graph to all of its stores and loads from the
// first store that has the investigation.
type MultiGraphStore []GraphStore

// StoreGraph stores g in every store, returning the first failure after
// attempting all of them
func (m MultiGraphStore) StoreGraph(ctx context.Context, investigationID string, g *graph.Graph) error {
	var first error
	for _, store := range m {
		if err := store.StoreGraph(ctx, investigationID, g); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LoadGraph loads from the stores in order
func (m MultiGraphStore) LoadGraph(ctx context.Context, investigationID string) (*graph.Graph, error) {
	if len(m) == 0 {
		return nil, errors.New("no graph stores configured")
	}

	var last error
	for _, store := range m {
		g, err := store.LoadGraph(ctx, investigationID)
		if err == nil {
			return g, nil
		}
		last = err
	}
	return nil, last
}

// Close closes every member store that holds resources, returning the first failure
func (m MultiGraphStore) Close() error {
	var first error
	for _, store := range m {
		closer, ok := store.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open returns the JSON store under dir, followed by a Neo4j store when uri
// is set and the server answers. An unreachable Neo4j is logged and skipped.
func Open(ctx context.Context, dir, uri, username, password string, logger *logrus.Logger) MultiGraphStore {
	stores := MultiGraphStore{NewJSONGraphStore(dir)}
	if uri == "" {
		return stores
	}

	neo, err := NewNeo4jGraphStore(uri, username, password, logger)
	if err != nil {
		logger.Errorf("Neo4j disabled: %v", err)
		return stores
	}
	if err := neo.Ping(ctx); err != nil {
		logger.Errorf("Neo4j disabled: %v", err)
		neo.Close()
		return stores
	}
	return append(stores, neo)
}

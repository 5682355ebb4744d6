package storage

import (
	"context"
	"encoding/json"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	deleteInvestigationCypher = `
		MATCH (e:Entity {investigation_id: $investigation_id})
		DETACH DELETE e
	`

	mergeNodesCypher = `
		UNWIND $nodes AS node
		MERGE (e:Entity {investigation_id: $investigation_id, id: node.id})
		SET e.type = node.type,
			e.label = node.label,
			e.confidence = node.confidence,
			e.attributes = node.attributes,
			e.seq = node.seq,
			e.updated_at = datetime()
	`

	mergeEdgesCypher = `
		UNWIND $edges AS edge
		MATCH (from:Entity {investigation_id: $investigation_id, id: edge.source})
		MATCH (to:Entity {investigation_id: $investigation_id, id: edge.target})
		MERGE (from)-[r:RELATES {id: edge.id}]->(to)
		SET r.relation = edge.relation,
			r.strength = edge.strength,
			r.seq = edge.seq
	`

	loadNodesCypher = `
		MATCH (e:Entity {investigation_id: $investigation_id})
		RETURN e
		ORDER BY e.seq
	`

	loadEdgesCypher = `
		MATCH (from:Entity {investigation_id: $investigation_id})-[r:RELATES]->(to:Entity)
		RETURN r.id AS id, from.id AS source, to.id AS target, r.relation AS relation, r.strength AS strength
		ORDER BY r.seq
	`
)

// Neo4jGraphStore stores investigation graphs as :Entity nodes joined by
// :RELATES relationships, scoped by an investigation_id property.
type Neo4jGraphStore struct {
	driver neo4j.Driver
	logger *logrus.Logger
}

// NewNeo4jGraphStore creates a store connected to uri
func NewNeo4jGraphStore(uri, username, password string, logger *logrus.Logger) (*Neo4jGraphStore, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Neo4j driver")
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Neo4jGraphStore{
		driver: driver,
		logger: logger,
	}, nil
}

// Ping verifies the server is reachable
func (s *Neo4jGraphStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.driver.VerifyConnectivity(), "neo4j unreachable")
}

// Close releases the driver
func (s *Neo4jGraphStore) Close() error {
	return s.driver.Close()
}

// StoreGraph replaces the investigation's subgraph in one write transaction
func (s *Neo4jGraphStore) StoreGraph(ctx context.Context, investigationID string, g *graph.Graph) error {
	nodes, err := nodeParams(g.Nodes)
	if err != nil {
		return err
	}
	edges := edgeParams(g.Edges)

	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err = session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		scope := map[string]interface{}{"investigation_id": investigationID}
		if _, err := tx.Run(deleteInvestigationCypher, scope); err != nil {
			return nil, err
		}
		if _, err := tx.Run(mergeNodesCypher, map[string]interface{}{
			"investigation_id": investigationID,
			"nodes":            nodes,
		}); err != nil {
			return nil, err
		}
		_, err := tx.Run(mergeEdgesCypher, map[string]interface{}{
			"investigation_id": investigationID,
			"edges":            edges,
		})
		return nil, err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to store graph for investigation %s", investigationID)
	}

	s.logger.WithFields(logrus.Fields{
		"investigation_id": investigationID,
		"nodes":            len(nodes),
		"edges":            len(edges),
	}).Info("Stored graph in Neo4j")
	return nil
}

// LoadGraph reads an investigation's subgraph back in insertion order
func (s *Neo4jGraphStore) LoadGraph(ctx context.Context, investigationID string) (*graph.Graph, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	out, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		scope := map[string]interface{}{"investigation_id": investigationID}
		g := graph.NewEmptyGraph()

		result, err := tx.Run(loadNodesCypher, scope)
		if err != nil {
			return nil, err
		}
		for result.Next() {
			node, ok := result.Record().Values[0].(neo4j.Node)
			if !ok {
				continue
			}
			n, err := nodeFromProps(node.Props)
			if err != nil {
				return nil, err
			}
			g.Nodes = append(g.Nodes, n)
		}
		if err := result.Err(); err != nil {
			return nil, err
		}

		result, err = tx.Run(loadEdgesCypher, scope)
		if err != nil {
			return nil, err
		}
		for result.Next() {
			g.Edges = append(g.Edges, edgeFromRecord(result.Record()))
		}
		return g, result.Err()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load graph for investigation %s", investigationID)
	}
	return out.(*graph.Graph), nil
}

// nodeParams flattens nodes for Cypher. Neo4j properties cannot hold maps,
// so attributes travel as a JSON string. seq preserves insertion order.
func nodeParams(nodes []graph.Node) ([]interface{}, error) {
	out := make([]interface{}, 0, len(nodes))
	for i, n := range nodes {
		attrs, err := json.Marshal(n.Attributes)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode attributes of node %s", n.ID)
		}
		out = append(out, map[string]interface{}{
			"id":         n.ID,
			"type":       string(n.Type),
			"label":      n.Label,
			"confidence": int64(n.Confidence),
			"attributes": string(attrs),
			"seq":        int64(i),
		})
	}
	return out, nil
}

func edgeParams(edges []graph.Edge) []interface{} {
	out := make([]interface{}, 0, len(edges))
	for i, e := range edges {
		out = append(out, map[string]interface{}{
			"id":       e.ID,
			"source":   e.Source,
			"target":   e.Target,
			"relation": e.Relation,
			"strength": e.Strength,
			"seq":      int64(i),
		})
	}
	return out
}

func nodeFromProps(props map[string]interface{}) (graph.Node, error) {
	n := graph.Node{
		ID:         stringProp(props, "id"),
		Type:       graph.EntityType(stringProp(props, "type")),
		Label:      stringProp(props, "label"),
		Attributes: make(map[string]interface{}),
	}
	if c, ok := props["confidence"].(int64); ok {
		n.Confidence = int(c)
	}
	if raw := stringProp(props, "attributes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &n.Attributes); err != nil {
			return graph.Node{}, errors.Wrapf(err, "failed to decode attributes of node %s", n.ID)
		}
	}
	return n, nil
}

func edgeFromRecord(record *neo4j.Record) graph.Edge {
	e := graph.Edge{}
	if v, ok := record.Get("id"); ok {
		e.ID, _ = v.(string)
	}
	if v, ok := record.Get("source"); ok {
		e.Source, _ = v.(string)
	}
	if v, ok := record.Get("target"); ok {
		e.Target, _ = v.(string)
	}
	if v, ok := record.Get("relation"); ok {
		e.Relation, _ = v.(string)
	}
	if v, ok := record.Get("strength"); ok {
		e.Strength, _ = v.(float64)
	}
	return e
}

func stringProp(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}

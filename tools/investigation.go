package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/athapong/aio-osint/pkg/config"
	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/algorithms"
	"github.com/athapong/aio-osint/pkg/graph/builder"
	"github.com/athapong/aio-osint/pkg/graph/crossref"
	"github.com/athapong/aio-osint/pkg/graph/feed"
	"github.com/athapong/aio-osint/pkg/graph/layout"
	"github.com/athapong/aio-osint/pkg/graph/query"
	"github.com/athapong/aio-osint/pkg/graph/scoring"
	"github.com/athapong/aio-osint/pkg/graph/session"
	"github.com/athapong/aio-osint/pkg/graph/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultTicks is how many simulation ticks a tool call relaxes the layout
const DefaultTicks = 300

// Investigations keeps one live session per investigation for the MCP tools.
// Findings sent to build_investigation_graph accumulate in an in-memory feed,
// so each call rebuilds from the full history.
type Investigations struct {
	cfg    *config.Config
	store  storage.GraphStore
	logger *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	feeds    map[string]*feed.MemoryFeed
}

// NewInvestigations creates the tool state. store may be nil.
func NewInvestigations(cfg *config.Config, store storage.GraphStore, logger *logrus.Logger) *Investigations {
	return &Investigations{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		sessions: make(map[string]*session.Session),
		feeds:    make(map[string]*feed.MemoryFeed),
	}
}

// RegisterInvestigationTools registers the investigation graph tools
func RegisterInvestigationTools(s *server.MCPServer, inv *Investigations) {
	buildTool := mcp.NewTool("build_investigation_graph",
		mcp.WithDescription("Add findings to an investigation and rebuild its relationship graph with a relaxed layout"),
		mcp.WithString("investigation_id", mcp.Required(), mcp.Description("Investigation identifier")),
		mcp.WithString("findings", mcp.Required(), mcp.Description("JSON array of findings: {id, agent_type, raw_data, confidence_score, verification_status, created_at}")),
		mcp.WithString("criteria", mcp.Description("JSON search criteria: {name, email, phone, username, address, keywords}")),
		mcp.WithString("layout", mcp.Description("Layout strategy: force, radial or hierarchical")),
		mcp.WithNumber("ticks", mcp.Description("Simulation ticks to run before returning")),
	)
	s.AddTool(buildTool, errorGuard(inv.logger, "build_investigation_graph", inv.buildInvestigationHandler))

	relativeTool := mcp.NewTool("build_relative_graph",
		mcp.WithDescription("Expand a person record into a multi-hop relative graph with statistics"),
		mcp.WithString("person", mcp.Required(), mcp.Description("JSON person record: {id, name, addresses, phones, emails, relatives, enriched_relatives, potential_relatives, residents}")),
		mcp.WithNumber("depth", mcp.Description("Maximum traversal depth, at least 1 (default 2)")),
	)
	s.AddTool(relativeTool, errorGuard(inv.logger, "build_relative_graph", inv.buildRelativeHandler))

	crossrefTool := mcp.NewTool("cross_reference_values",
		mcp.WithDescription("Normalize phones, emails, addresses and relative names across findings and count independent sources"),
		mcp.WithString("findings", mcp.Required(), mcp.Description("JSON array of findings")),
		mcp.WithString("subject", mcp.Description("Subject name to exclude from relatives")),
	)
	s.AddTool(crossrefTool, errorGuard(inv.logger, "cross_reference_values", crossReferenceHandler))

	scoreTool := mcp.NewTool("score_finding",
		mcp.WithDescription("Compute the 0-100 confidence score of a finding payload for the given search criteria"),
		mcp.WithString("criteria", mcp.Required(), mcp.Description("JSON search criteria")),
		mcp.WithString("raw_data", mcp.Required(), mcp.Description("Finding payload as JSON")),
	)
	s.AddTool(scoreTool, errorGuard(inv.logger, "score_finding", scoreFindingHandler))

	queryTool := mcp.NewTool("query_graph",
		mcp.WithDescription("Filter the current graph of an investigation"),
		mcp.WithString("investigation_id", mcp.Required(), mcp.Description("Investigation identifier")),
		mcp.WithString("filters", mcp.Description("Comma separated filters such as type=email,confidence>=60,verified=true,label~doe")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of non-target nodes")),
	)
	s.AddTool(queryTool, errorGuard(inv.logger, "query_graph", inv.queryHandler))

	pivotTool := mcp.NewTool("pivot_node",
		mcp.WithDescription("Activate a searchable node and return the identifier that seeds a new investigation"),
		mcp.WithString("investigation_id", mcp.Required(), mcp.Description("Investigation identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to pivot on")),
	)
	s.AddTool(pivotTool, errorGuard(inv.logger, "pivot_node", inv.pivotHandler))
}

// session returns the live session of an investigation, creating it on first
// use. Criteria only apply when the session is created.
func (inv *Investigations) session(investigationID string, criteria scoring.Criteria) (*session.Session, *feed.MemoryFeed) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if s, ok := inv.sessions[investigationID]; ok {
		return s, inv.feeds[investigationID]
	}

	f := feed.NewMemoryFeed()
	opts := append(inv.cfg.SimulatorOptions(), layout.WithLogger(inv.logger))
	s := session.New(investigationID, f,
		session.WithBuilder(builder.New(builder.WithCriteria(criteria), builder.WithLogger(inv.logger))),
		session.WithSimulator(layout.NewSimulator(opts...)),
		session.WithStrategy(inv.cfg.Strategy()),
		session.WithLogger(inv.logger),
	)
	inv.sessions[investigationID] = s
	inv.feeds[investigationID] = f
	return s, f
}

func (inv *Investigations) lookup(investigationID string) (*session.Session, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	s, ok := inv.sessions[investigationID]
	return s, ok
}

func (inv *Investigations) buildInvestigationHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	investigationID := stringArg(args, "investigation_id")
	if investigationID == "" {
		return mcp.NewToolResultError("investigation_id is required"), nil
	}

	findings, err := decodeFindings(stringArg(args, "findings"), investigationID)
	if err != nil {
		return nil, err
	}

	var criteria scoring.Criteria
	if raw := stringArg(args, "criteria"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
			return nil, errors.Wrap(err, "invalid criteria")
		}
	}

	sess, f := inv.session(investigationID, criteria)
	f.Append(findings...)

	if name := stringArg(args, "layout"); name != "" {
		strategy, err := layout.ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		sess.SetStrategy(strategy)
	}

	if _, err := sess.Rebuild(ctx); err != nil {
		return nil, err
	}
	snap := sess.Relax(intArg(args, "ticks", DefaultTicks))

	if inv.store != nil && !snap.Graph.IsEmpty() {
		if err := inv.store.StoreGraph(ctx, investigationID, snap.Graph); err != nil {
			inv.logger.WithError(err).Warn("Failed to persist investigation graph")
		}
	}
	return jsonResult(snap)
}

func (inv *Investigations) buildRelativeHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var root graph.Person
	if err := json.Unmarshal([]byte(stringArg(args, "person")), &root); err != nil {
		return nil, errors.Wrap(err, "invalid person record")
	}

	g, err := algorithms.NewRelativeExpander(inv.logger).Expand(root, intArg(args, "depth", 2))
	if err != nil {
		return nil, err
	}
	return jsonResult(g)
}

func crossReferenceHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	findings, err := decodeFindings(stringArg(args, "findings"), "")
	if err != nil {
		return nil, err
	}

	resolver := crossref.NewResolver(crossref.WithSubject(stringArg(args, "subject")))
	return jsonResult(resolver.Resolve(crossref.Extract(findings)))
}

func scoreFindingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var criteria scoring.Criteria
	if err := json.Unmarshal([]byte(stringArg(args, "criteria")), &criteria); err != nil {
		return nil, errors.Wrap(err, "invalid criteria")
	}
	raw := stringArg(args, "raw_data")
	if !json.Valid([]byte(raw)) {
		return mcp.NewToolResultError("raw_data must be valid JSON"), nil
	}

	score := scoring.ScoreFinding(criteria, graph.Finding{RawData: json.RawMessage(raw)})
	return jsonResult(map[string]interface{}{
		"confidence_score": score,
		"data_points":      criteria.DataPoints(),
	})
}

func (inv *Investigations) queryHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	investigationID := stringArg(args, "investigation_id")

	var g *graph.Graph
	if sess, ok := inv.lookup(investigationID); ok {
		g = sess.Snapshot().Graph
	} else if inv.store != nil {
		loaded, err := inv.store.LoadGraph(ctx, investigationID)
		if err != nil {
			return nil, err
		}
		g = loaded
	} else {
		return mcp.NewToolResultError("unknown investigation " + investigationID), nil
	}

	q := query.NewQuery().SetLimit(intArg(args, "limit", 0))
	for _, expr := range strings.Split(stringArg(args, "filters"), ",") {
		if expr = strings.TrimSpace(expr); expr == "" {
			continue
		}
		f, err := query.ParseFilter(expr)
		if err != nil {
			return nil, err
		}
		q.AddFilter(f)
	}

	out, err := q.Apply(g)
	if err != nil {
		return nil, err
	}
	return jsonResult(out)
}

func (inv *Investigations) pivotHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess, ok := inv.lookup(stringArg(args, "investigation_id"))
	if !ok {
		return mcp.NewToolResultError("unknown investigation " + stringArg(args, "investigation_id")), nil
	}

	event, err := sess.Activate(stringArg(args, "node_id"))
	if err != nil {
		return nil, err
	}
	// the event is returned to the caller; drain the session's copy
	select {
	case <-sess.Pivots():
	default:
	}
	return jsonResult(event)
}

func decodeFindings(raw, investigationID string) ([]graph.Finding, error) {
	var findings []graph.Finding
	if err := json.Unmarshal([]byte(raw), &findings); err != nil {
		return nil, errors.Wrap(err, "findings must be a JSON array")
	}
	for i := range findings {
		if findings[i].InvestigationID == "" {
			findings[i].InvestigationID = investigationID
		}
	}
	return findings, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode result")
	}
	return mcp.NewToolResultText(string(data)), nil
}

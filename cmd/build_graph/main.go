package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/athapong/aio-osint/pkg/config"
	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/algorithms"
	"github.com/athapong/aio-osint/pkg/graph/builder"
	"github.com/athapong/aio-osint/pkg/graph/feed"
	"github.com/athapong/aio-osint/pkg/graph/layout"
	"github.com/athapong/aio-osint/pkg/graph/scoring"
	"github.com/athapong/aio-osint/pkg/graph/session"
	"github.com/athapong/aio-osint/pkg/graph/storage"
	"github.com/athapong/aio-osint/pkg/graph/visualizer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	envFile         = flag.String("env", ".env", "Path to environment file")
	configFile      = flag.String("config", "", "Optional YAML configuration file")
	findingsFile    = flag.String("findings", "", "JSON file containing the finding history")
	relativesFile   = flag.String("relatives", "", "JSON file containing a root person record for the relative graph")
	depth           = flag.Int("depth", 2, "Traversal depth for the relative graph")
	investigation   = flag.String("investigation", "", "Investigation id (overrides config)")
	layoutName      = flag.String("layout", "", "Layout strategy: force, radial or hierarchical (overrides config)")
	ticks           = flag.Int("ticks", 300, "Simulation ticks to run before writing output")
	watch           = flag.Bool("watch", false, "Watch the findings file and rebuild on change")
	visualize       = flag.Bool("visualize", false, "Generate an HTML visualization")
	visualizeOutput = flag.String("viz-output", "investigation_graph.html", "Output file for the visualization")
	metricsAddr     = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	logLevel        = flag.String("log-level", "", "Logging level (debug, info, warn, error)")

	subjectName = flag.String("name", "", "Subject name")
	subjectMail = flag.String("email", "", "Subject email")
	subjectTel  = flag.String("phone", "", "Subject phone")
	subjectUser = flag.String("username", "", "Subject username")
	subjectAddr = flag.String("address", "", "Subject address")
	keywords    = flag.String("keywords", "", "Comma separated keywords")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlags(cfg)

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := storage.Open(ctx, cfg.GraphDir, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, logger)
	closeStores := func() {
		if err := stores.Close(); err != nil {
			logger.Errorf("Failed to close graph stores: %v", err)
		}
	}
	// Fatal skips deferred calls but runs exit handlers
	logrus.RegisterExitHandler(closeStores)
	defer closeStores()
	sim := layout.NewSimulator(append(cfg.SimulatorOptions(), layout.WithLogger(logger))...)
	viz := visualizer.NewD3Visualizer(*visualizeOutput).WithTitle("Investigation " + cfg.InvestigationID)

	if *relativesFile != "" {
		if err := buildRelatives(ctx, cfg, sim, stores, viz, logger); err != nil {
			logger.Fatalf("Failed to build relative graph: %v", err)
		}
		return
	}

	if cfg.FindingsPath == "" {
		logger.Fatal("Findings file must be specified")
	}

	fileFeed := feed.NewFileFeed(cfg.FindingsPath, feed.WithLogger(logger))
	persist := func(snap *session.Snapshot) {
		if snap.Status == session.StatusFeedFailed {
			return
		}
		if err := stores.StoreGraph(ctx, cfg.InvestigationID, snap.Graph); err != nil {
			logger.Errorf("Failed to store graph: %v", err)
		}
	}

	sess := session.New(cfg.InvestigationID, fileFeed,
		session.WithBuilder(builder.New(builder.WithCriteria(criteria()), builder.WithLogger(logger))),
		session.WithSimulator(sim),
		session.WithStrategy(cfg.Strategy()),
		session.WithLogger(logger),
		session.WithRebuildHook(persist),
	)

	if _, err := sess.Rebuild(ctx); err != nil {
		logger.Fatalf("Failed to build graph: %v", err)
	}
	snap := sess.Relax(*ticks)
	logger.Infof("Investigation graph generated with %d nodes and %d edges", len(snap.Graph.Nodes), len(snap.Graph.Edges))
	render(viz, snap, sim, logger)

	if !*watch {
		return
	}

	if err := fileFeed.Start(ctx); err != nil {
		logger.Fatalf("Failed to watch findings: %v", err)
	}
	defer fileFeed.Stop()

	go func() {
		if err := sess.Watch(ctx); err != nil {
			logger.Errorf("Watch stopped: %v", err)
		}
	}()
	go func() {
		if err := sess.Run(ctx, cfg.TickInterval()); err != nil {
			logger.Errorf("Simulation stopped: %v", err)
		}
	}()

	// re-render at most once a second while the layout keeps moving
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var lastUpdate time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return
		case <-ticker.C:
			snap := sess.Snapshot()
			if snap.UpdatedAt.Equal(lastUpdate) {
				continue
			}
			lastUpdate = snap.UpdatedAt
			render(viz, snap, sim, logger)
		}
	}
}

func applyFlags(cfg *config.Config) {
	if *findingsFile != "" {
		cfg.FindingsPath = *findingsFile
	}
	if *investigation != "" {
		cfg.InvestigationID = *investigation
	}
	if *layoutName != "" {
		cfg.Layout.Strategy = *layoutName
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
}

func criteria() scoring.Criteria {
	c := scoring.Criteria{
		Name:     *subjectName,
		Email:    *subjectMail,
		Phone:    *subjectTel,
		Username: *subjectUser,
		Address:  *subjectAddr,
	}
	for _, k := range strings.Split(*keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			c.Keywords = append(c.Keywords, k)
		}
	}
	return c
}

func buildRelatives(ctx context.Context, cfg *config.Config, sim *layout.Simulator, stores storage.MultiGraphStore, viz *visualizer.D3Visualizer, logger *logrus.Logger) error {
	data, err := os.ReadFile(*relativesFile)
	if err != nil {
		return err
	}
	var root graph.Person
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}

	g, err := algorithms.NewRelativeExpander(logger).Expand(root, *depth)
	if err != nil {
		return err
	}
	if err := stores.StoreGraph(ctx, cfg.InvestigationID, g); err != nil {
		logger.Errorf("Failed to store relative graph: %v", err)
	}

	stats := g.Statistics
	logger.WithFields(logrus.Fields{
		"nodes":            stats.TotalNodes,
		"persons":          stats.PersonNodes,
		"relationships":    stats.RelationshipEdges,
		"shared_addresses": stats.SharedAddresses,
		"density":          stats.Density,
	}).Info("Relative graph generated")

	strategy := cfg.Strategy()
	frame := sim.Place(g, strategy)
	if !strategy.Static() {
		frame = sim.Relax(g, frame, *ticks)
	}
	render(viz, &session.Snapshot{Graph: g, Frame: frame, Strategy: strategy}, sim, logger)
	return nil
}

func render(viz *visualizer.D3Visualizer, snap *session.Snapshot, sim *layout.Simulator, logger *logrus.Logger) {
	if !*visualize {
		return
	}
	if err := viz.Visualize(snap.Graph, snap.Frame, snap.Strategy, sim.Canvas()); err != nil {
		logger.Errorf("Failed to visualize graph: %v", err)
		return
	}
	logger.Debugf("Visualization saved to %s", *visualizeOutput)
}

func serveMetrics(addr string, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Infof("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("Metrics server stopped: %v", err)
	}
}

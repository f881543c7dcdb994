package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/stratum"
	"github.com/poiesic/stratum/config"
	"github.com/poiesic/stratum/engine"
	"github.com/poiesic/stratum/ingestion"
	"github.com/poiesic/stratum/metrics"
	"github.com/poiesic/stratum/server"
	"github.com/poiesic/stratum/visualize"
)

func ingestCommand(c *cli.Context) error {
	ctx := c.Context
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	voxels, edges, err := ingestion.LoadFiles(c.String("voxels"), c.String("neighbors"))
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	db, err := stratum.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintf(os.Stderr, "Voxels: %d\n\n", len(voxels))

	if err := pipeline.Ingest(ctx, voxels, edges); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	embedErr := pipeline.Wait()

	stats := pipeline.Stats()
	fmt.Fprintf(os.Stderr, "%s %d voxels stored, %d embedded, %d unchanged\n",
		success("done"), len(voxels), stats.Embedded, stats.Skipped)
	if embedErr != nil {
		return fmt.Errorf("some embeddings failed, run reembed to retry: %w", embedErr)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := c.Context
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	rc := *cfg.Reembed
	if c.IsSet("batch-size") {
		rc.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("concurrency") {
		rc.Concurrency = c.Int("concurrency")
	}
	rc.Force = rc.Force || c.Bool("force")
	rc.Restart = rc.Restart || c.Bool("restart")
	if rc.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if rc.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := stratum.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(&rc, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	ctx := c.Context
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := stratum.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Release()

	e, err := db.NewEngine(engine.WithDispatcher(dispatcher))
	if err != nil {
		return err
	}

	res, err := e.Ask(ctx, query)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Answer)
	}
	printResult(os.Stdout, res, c.Bool("context"))
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	db, err := stratum.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Release()

	collector := metrics.NewCollector("stratum", prometheus.DefaultRegisterer)
	e, err := db.NewEngine(engine.WithDispatcher(dispatcher), engine.WithMonitor(collector))
	if err != nil {
		return err
	}

	srv, err := server.New(e, db.Store(), server.WithMetricsHandler(promhttp.Handler()))
	if err != nil {
		return err
	}
	return srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

func pathCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: stratum path <from> <to>")
	}
	from, to := c.Args().Get(0), c.Args().Get(1)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := stratum.Open(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	path, err := db.Store().ShortestPath(c.Context, from, to, c.Int("max-hops"))
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d hops)\n", strings.Join(path, " -> "), len(path)-1)
	return nil
}

func newDispatcher(cfg *config.Config) (*visualize.Dispatcher, error) {
	var h visualize.Highlighter = visualize.NewLogHighlighter(slog.Default())
	if cfg.Highlight.Path != "" {
		fh, err := visualize.NewFileHighlighter(cfg.Highlight.Path)
		if err != nil {
			return nil, err
		}
		h = fh
	}
	opts := []visualize.DispatcherOption{visualize.WithTimeout(cfg.Highlight.Timeout)}
	if cfg.Highlight.PoolSize > 0 {
		opts = append(opts, visualize.WithPoolSize(cfg.Highlight.PoolSize))
	}
	return visualize.NewDispatcher(h, opts...)
}

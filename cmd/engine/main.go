// Package main runs the MEV risk detection engine:
// - Scoring (HTTP): synchronous transaction risk scoring
// - Streaming (continuous): WebSocket transaction feed scored in shadow mode
// - Shadow (background): candidate model evaluation and append-only logging
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/drift"
	"solana-mev-engine/internal/features"
	"solana-mev-engine/internal/heuristics"
	"solana-mev-engine/internal/inference"
	"solana-mev-engine/internal/intel"
	"solana-mev-engine/internal/observability"
	"solana-mev-engine/internal/shadow"
	"solana-mev-engine/internal/storage"
	chstore "solana-mev-engine/internal/storage/clickhouse"
	filestore "solana-mev-engine/internal/storage/file"
	"solana-mev-engine/internal/storage/memory"
	"solana-mev-engine/internal/storage/migrations"
	pgstore "solana-mev-engine/internal/storage/postgres"
	"solana-mev-engine/internal/stream"
)

// Server holds all components of the engine service.
type Server struct {
	engine *inference.Engine
	shadow *shadow.Manager
	logger *log.Logger

	started time.Time
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", ":8080", "HTTP listen address")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("FEED_WS_ENDPOINT"), "Transaction feed WebSocket endpoint (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for producer intel (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the shadow log (optional)")
	shadowLogPath := flag.String("shadow-log", "output/shadow_predictions.jsonl", "Shadow log JSONL path, used when no ClickHouse DSN is set")
	shadowEnabled := flag.Bool("shadow-enabled", false, "Start with shadow mode on")
	driftPolicy := flag.String("drift-policy", "majority", "Drift voting policy: any, majority, unanimous")
	warmupIters := flag.Int("warmup", inference.DefaultWarmupIterations, "Warmup iterations")
	latencyTargetMs := flag.Int("latency-target-ms", inference.DefaultLatencyTargetMs, "Per-prediction latency target")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)

	policy, err := parseDriftPolicy(*driftPolicy)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Producer intel: PostgreSQL when configured, built-in sample set otherwise.
	intelEntries, cleanupIntel, err := loadIntel(ctx, *postgresDSN, logger)
	if err != nil {
		logger.Fatalf("Failed to load producer intel: %v", err)
	}
	defer cleanupIntel()

	// Shadow log sink: ClickHouse when configured, JSONL file otherwise.
	shadowStore, cleanupShadow, err := createShadowStore(ctx, *clickhouseDSN, *shadowLogPath, logger)
	if err != nil {
		logger.Fatalf("Failed to create shadow store: %v", err)
	}
	defer cleanupShadow()

	shadowMgr := shadow.NewManager(shadow.Options{
		Store:   shadowStore,
		Enabled: *shadowEnabled,
		Logger:  logger,
		OnDrop:  func() { observability.DefaultMetrics.ShadowDropped.Inc() },
	})
	defer shadowMgr.Close()

	extractor := features.NewExtractor(features.Options{
		Intel: intel.NewStaticLookup(intelEntries),
	})

	engine := inference.NewEngine(inference.Options{
		Extractor: extractor,
		Scorer:    heuristics.NewPipeline(heuristics.PipelineOptions{}),
		Drift:     drift.NewDetector(drift.Options{Policy: policy}),
		Shadow:    shadowMgr,

		LatencyTargetMs: *latencyTargetMs,
		Logger:          logger,
	})
	engine.Warmup(*warmupIters)

	server := &Server{
		engine:  engine,
		shadow:  shadowMgr,
		logger:  logger,
		started: time.Now(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*addr)

	// Consume the feed when configured; otherwise serve HTTP only.
	if *wsEndpoint != "" {
		if err := server.runStream(ctx, *wsEndpoint); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatalf("Stream error: %v", err)
		}
	} else {
		<-ctx.Done()
	}

	shadowMgr.Flush()
	logger.Println("Shutdown complete")
}

// runStream scores every transaction delivered by the feed.
func (s *Server) runStream(ctx context.Context, endpoint string) error {
	source, err := stream.NewSource(ctx, endpoint, nil, s.logger)
	if err != nil {
		return fmt.Errorf("connect to feed: %w", err)
	}
	defer source.Close()

	s.logger.Printf("Consuming transaction feed from %s", endpoint)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tx, ok := <-source.Events():
			if !ok {
				return nil
			}
			if _, err := s.engine.PredictWithShadow(tx); err != nil {
				s.logger.Printf("Prediction failed for %s: %v", tx.Signature, err)
			}
		}
	}
}

// loadIntel returns producer intel entries and a cleanup function.
func loadIntel(ctx context.Context, postgresDSN string, logger *log.Logger) (map[string]*domain.ProducerIntel, func(), error) {
	if postgresDSN == "" {
		logger.Println("No PostgreSQL DSN, using built-in producer intel sample")
		entries, rejected := intel.ValidEntries(intel.SampleIntel())
		for _, key := range rejected {
			logger.Printf("Dropping producer intel entry with invalid key %q", key)
		}
		return entries, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	store := pgstore.NewIntelStore(pool)

	// Seed an empty table with the built-in sample so a fresh deployment
	// still has known operators.
	records, err := store.LoadAll(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("load producer intel: %w", err)
	}
	if len(records) == 0 {
		sample := make([]*domain.ProducerIntel, 0)
		for _, p := range intel.SampleIntel() {
			sample = append(sample, p)
		}
		if err := store.UpsertBulk(ctx, sample); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("seed producer intel: %w", err)
		}
		records = sample
	}

	all := make(map[string]*domain.ProducerIntel, len(records))
	for _, p := range records {
		all[p.Pubkey] = p
	}
	entries, rejected := intel.ValidEntries(all)
	for _, key := range rejected {
		logger.Printf("Dropping producer intel entry with invalid key %q", key)
	}

	logger.Printf("Loaded %d producer intel records from PostgreSQL", len(entries))
	return entries, pool.Close, nil
}

// createShadowStore returns the shadow log sink and a cleanup function.
func createShadowStore(ctx context.Context, clickhouseDSN, logPath string, logger *log.Logger) (storage.ShadowLogStore, func(), error) {
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
		}
		logger.Println("Shadow log sink: ClickHouse")
		return chstore.NewShadowLogStore(conn), func() { conn.Close() }, nil
	}

	if logPath != "" {
		fs, err := filestore.NewShadowLogStore(logPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Printf("Shadow log sink: %s", logPath)
		return fs, func() { fs.Close() }, nil
	}

	logger.Println("Shadow log sink: in-memory")
	return memory.NewShadowLogStore(), func() {}, nil
}

func parseDriftPolicy(name string) (drift.VotingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "any":
		return drift.AnyTrigger, nil
	case "majority", "":
		return drift.MajorityVote, nil
	case "unanimous":
		return drift.UnanimousVote, nil
	default:
		return 0, fmt.Errorf("unknown drift policy %q", name)
	}
}

// startHTTPServer starts the HTTP server for scoring/health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("/score", s.handleScore)
	mux.HandleFunc("/market", s.handleMarket)
	mux.HandleFunc("/thresholds", s.handleThresholds)
	mux.HandleFunc("/drift", s.handleDrift)
	mux.HandleFunc("/model", s.handleModel)
	mux.HandleFunc("/shadow/stats", s.handleShadowStats)
	mux.HandleFunc("/shadow/enable", s.handleShadowToggle(true))
	mux.HandleFunc("/shadow/disable", s.handleShadowToggle(false))
	mux.HandleFunc("/shadow/flush", s.handleShadowFlush)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// handleScore scores one transaction posted as JSON.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tx domain.TransactionData
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, fmt.Sprintf("decode transaction: %v", err), http.StatusBadRequest)
		return
	}

	pred, err := s.engine.PredictWithShadow(&tx)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, inference.ErrNotWarmedUp) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, pred)
}

// handleMarket updates market conditions used for threshold adjustment.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var mc domain.MarketConditions
	if err := json.NewDecoder(r.Body).Decode(&mc); err != nil {
		http.Error(w, fmt.Sprintf("decode market conditions: %v", err), http.StatusBadRequest)
		return
	}

	s.engine.UpdateMarketConditions(mc)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleThresholds(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.engine.Thresholds()
	if !ok {
		http.Error(w, "thresholds not available for this scorer", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleDrift(w http.ResponseWriter, _ *http.Request) {
	stats, ok := s.engine.DriftStats()
	if !ok {
		http.Error(w, "drift detection not configured", http.StatusNotFound)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.engine.Info())
}

// handleStatus reports uptime plus the engine and shadow snapshots.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"model":          s.engine.Info(),
		"shadow":         s.shadow.Stats(),
	})
}

func (s *Server) handleShadowStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.shadow.Stats())
}

func (s *Server) handleShadowToggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if enable {
			s.shadow.Enable()
		} else {
			s.shadow.Disable()
		}
		writeJSON(w, s.shadow.Stats())
	}
}

func (s *Server) handleShadowFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.shadow.Flush()
	writeJSON(w, s.shadow.Stats())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

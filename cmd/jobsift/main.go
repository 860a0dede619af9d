package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"jobsift/internal/ai"
	"jobsift/internal/browser"
	"jobsift/internal/config"
	"jobsift/internal/crawl"
	server "jobsift/internal/http"
	"jobsift/internal/jobs"
	"jobsift/internal/migrate"
	"jobsift/internal/prompt"
	"jobsift/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	jobsPath := flag.String("jobs", "data/jobs.txt", "path to the title,url job list")
	role := flag.String("role", "crawl", "process role: crawl|serve|all")
	flag.Parse()

	cfg := config.Load(*configPath)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	// Run migrations on a short-lived connection
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}

	ctx := context.Background()

	var st *store.Store
	if cfg.Redis.URL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			// The database stays the source of truth; a missing cache
			// only costs extra existence checks.
			logger.Warn("redis unavailable, continuing without seen-url cache", "error", err)
			st = store.New(db, nil)
		} else {
			st = store.New(db, rdb)
		}
	} else {
		st = store.New(db, nil)
	}

	switch *role {
	case "crawl":
		runCrawl(ctx, cfg, st, *jobsPath, logger)
	case "serve":
		go jobs.NewSweeper(cfg, st, logger).Start(ctx)
		s := server.NewServer(cfg, st, nil, logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case "all":
		go jobs.NewSweeper(cfg, st, logger).Start(ctx)
		orch := buildOrchestrator(cfg, st, logger)
		go func() {
			runBatch(ctx, orch, st, *jobsPath, logger)
		}()
		s := server.NewServer(cfg, st, orch.Progress(), logger)
		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	default:
		log.Fatalf("invalid role: %s (expected crawl|serve|all)", *role)
	}
}

func runCrawl(ctx context.Context, cfg *config.Config, st *store.Store, jobsPath string, logger *slog.Logger) {
	orch := buildOrchestrator(cfg, st, logger)
	runBatch(ctx, orch, st, jobsPath, logger)
}

func buildOrchestrator(cfg *config.Config, st *store.Store, logger *slog.Logger) *crawl.Orchestrator {
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}

	fetcher := browser.NewFetcher(cfg.Browser, cfg.Robots, creds, logger)

	client, err := ai.NewClient(creds.AIAPIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout())
	if err != nil {
		log.Fatalf("ai client: %v", err)
	}
	analyzer := ai.NewRetryingAnalyzer(client, cfg.AI.MaxAttempts, cfg.AI.Backoff())

	prompts, err := prompt.NewBuilder(cfg.Crawler.PromptPath, cfg.Crawler.CVPath)
	if err != nil {
		log.Fatalf("prompt: %v", err)
	}

	proc := crawl.NewProcessor(st, fetcher, analyzer, prompts, cfg.Crawler.Keywords, logger)
	return crawl.NewOrchestrator(proc, cfg.Crawler.PoolSize(), logger)
}

func runBatch(ctx context.Context, orch *crawl.Orchestrator, st *store.Store, jobsPath string, logger *slog.Logger) {
	jobs, err := crawl.LoadJobURLs(jobsPath)
	if err != nil {
		log.Fatalf("load job urls: %v", err)
	}

	summary := orch.Run(ctx, jobs)

	// An empty batch never started, so there is no run to record.
	if summary.Total == 0 {
		return
	}
	if err := st.InsertRunSummary(ctx, summary); err != nil {
		logger.Error("persist run summary failed", "error", err)
	}
}

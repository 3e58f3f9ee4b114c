package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/JustJay7/court-case-pipeline/internal/api"
	"github.com/JustJay7/court-case-pipeline/internal/batch"
	"github.com/JustJay7/court-case-pipeline/internal/cache"
	"github.com/JustJay7/court-case-pipeline/internal/captcha"
	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/internal/database"
	"github.com/JustJay7/court-case-pipeline/internal/documents"
	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/JustJay7/court-case-pipeline/internal/server"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

func main() {
	var migrate, runBatch, fetchDocs bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations and exit")
	flag.BoolVar(&runBatch, "batch", false, "Run the BATCH_FILE queries once and exit")
	flag.BoolVar(&fetchDocs, "fetch-documents", false, "Download pending documents and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLoggerWithFile(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	if migrate {
		log.Info("Database migrations completed successfully")
		return
	}

	store := database.NewStore(db, log)
	fetcher := documents.NewFetcher(store, cfg.DocumentDir, cfg.UserAgent, log)

	if fetchDocs {
		report, err := fetcher.FetchPending(context.Background(), 0)
		if err != nil {
			log.Fatal("Document fetch failed", "error", err)
		}
		log.Info("Document fetch completed", "fetched", report.Fetched, "failed", report.Failed)
		return
	}

	browser, err := scraper.NewBrowser(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize browser", "error", err)
	}

	solver, fallback := captcha.FromConfig(cfg, log)
	pipeline := scraper.NewPipeline(cfg.Profile, scraper.OptionsFromConfig(cfg), solver, fallback, log)
	searcher := scraper.NewScraper(browser, pipeline, log)

	results := cache.NewCache(cfg.CacheSize, cfg.CacheTTL)
	runner := batch.NewRunner(searcher, store, results, batch.OptionsFromConfig(cfg), log)
	scheduler := batch.NewScheduler(runner, cfg.BatchFile, log)

	if runBatch {
		report, err := scheduler.RunOnce(context.Background())
		if cerr := browser.Close(); cerr != nil {
			log.Error("Failed to release resource", "error", cerr)
		}
		if err != nil {
			log.Fatal("Batch failed", "error", err)
		}
		log.Info("Batch completed", "succeeded", report.Succeeded, "failed", report.Failed, "skipped", report.Skipped)
		return
	}

	closers := []func() error{browser.Close}
	if cfg.BatchSchedule != "" {
		if err := scheduler.Start(cfg.BatchSchedule); err != nil {
			log.Fatal("Failed to start batch scheduler", "error", err)
		}
		closers = append([]func() error{func() error { scheduler.Stop(); return nil }}, closers...)
	} else {
		scheduler = nil
	}

	handlers := api.NewHandlers(api.Deps{
		Searcher:  searcher,
		Store:     store,
		Cache:     results,
		Runner:    runner,
		Scheduler: scheduler,
		Fetcher:   fetcher,
		Logger:    log,
		Config:    cfg,
	})
	srv := server.New(cfg, handlers, log, closers...)

	log.Info("Starting court case pipeline",
		"host", cfg.Host,
		"port", cfg.Port,
		"search_url", cfg.Profile.SearchURL,
		"schedule", cfg.BatchSchedule,
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}

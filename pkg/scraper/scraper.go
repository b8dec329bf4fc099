package scraper

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"imgfetch/internal/downloader"
	"imgfetch/pkg/config"
	"imgfetch/pkg/httpclient"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metadata"
	"imgfetch/pkg/ratelimit"
	"imgfetch/pkg/search"
	"imgfetch/pkg/storage"
	"imgfetch/pkg/useragent"
)

// Engine runs image searches and downloads the results.
type Engine struct {
	client  Fetcher
	agents  *useragent.Rotator
	limiter ratelimit.Limiter
	config  *config.Config
	logger  logger.Logger
}

// Summary aggregates the outcome of a download run.
type Summary struct {
	Query      string              `json:"query"`
	Total      int                 `json:"total"`
	Downloaded int                 `json:"downloaded"`
	Skipped    int                 `json:"skipped"`
	Failed     int                 `json:"failed"`
	Bytes      int64               `json:"bytes"`
	Elapsed    time.Duration       `json:"-"`
	Results    []downloader.Result `json:"results"`
}

// New creates an Engine from the given configuration.
func New(cfg *config.Config) (*Engine, error) {
	log := logger.GetLogger()

	client := httpclient.NewClientFromConfig(&cfg.HTTP, log)

	agents := useragent.NewRotator(cfg.HTTP.UserAgents)

	var limiter ratelimit.Limiter
	if cfg.Download.RequestsPerMinute > 0 {
		limiter = ratelimit.NewTokenBucket(cfg.Download.RequestsPerMinute, time.Minute)
	} else {
		limiter = ratelimit.NewUnlimited()
	}

	return &Engine{
		client:  client,
		agents:  agents,
		limiter: limiter,
		config:  cfg,
		logger:  log,
	}, nil
}

// Search fetches the result page for query and returns up to limit
// parsed image entries. A limit <= 0 means no limit.
func (e *Engine) Search(query string, limit int, filters *search.Filters) ([]metadata.Image, error) {
	if err := search.ValidateQuery(query); err != nil {
		return nil, err
	}

	searchURL := search.BuildSearchURL(query, filters)
	agent := e.agents.Next()

	e.logger.DebugWithFields("Fetching search results", map[string]interface{}{
		"query": query,
		"url":   searchURL,
	})

	resp, err := e.client.Get(searchURL, &httpclient.RequestOptions{
		Headers: map[string]string{"User-Agent": agent},
	})
	if err != nil {
		e.logger.WithError(err).WithField("query", query).Error("Search request failed")
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}

	images := metadata.Extract(string(page), limit)

	e.logger.InfoWithFields("Search completed", map[string]interface{}{
		"query": query,
		"found": len(images),
		"limit": limit,
	})

	return images, nil
}

// DownloadAll downloads the given images concurrently and returns a
// per-image and aggregate summary. Individual download failures do not
// fail the run.
func (e *Engine) DownloadAll(query string, images []metadata.Image) (*Summary, error) {
	start := time.Now()

	outputDir := e.outputDir(query)
	store, err := storage.NewManager(outputDir, e.config.Download.OverwriteExisting)
	if err != nil {
		e.logger.WithError(err).WithField("output_dir", outputDir).Error("Failed to create storage manager")
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	e.logger.InfoWithFields("Starting downloads", map[string]interface{}{
		"query":      query,
		"count":      len(images),
		"output_dir": outputDir,
	})

	pool := downloader.NewWorkerPool(downloader.PoolConfig{
		Workers:     e.config.Download.ConcurrentDownloads,
		Timeout:     e.config.Download.DownloadTimeout,
		MinFileSize: e.config.Download.MinFileSize,
		MaxFileSize: e.config.Download.MaxFileSize,
	}, e.client, store, e.limiter, e.logger)
	pool.Start()

	summary := &Summary{Query: query, Total: len(images)}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for res := range pool.Results() {
			switch res.Status {
			case downloader.StatusOK:
				summary.Downloaded++
				summary.Bytes += res.Bytes
			case downloader.StatusSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			summary.Results = append(summary.Results, res)
		}
	}()

	for _, img := range images {
		pool.Submit(downloader.Job{
			URL:    img.URL,
			Title:  img.Title,
			Format: img.Format,
		})
	}
	pool.Close()
	wg.Wait()

	summary.Elapsed = time.Since(start)

	e.logger.InfoWithFields("Download run completed", map[string]interface{}{
		"query":      query,
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
		"bytes":      summary.Bytes,
		"elapsed_ms": summary.Elapsed.Milliseconds(),
	})

	return summary, nil
}

// Run searches for query and downloads everything it finds.
func (e *Engine) Run(query string, limit int, filters *search.Filters) (*Summary, error) {
	images, err := e.Search(query, limit, filters)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		e.logger.WarnWithFields("No images found", map[string]interface{}{"query": query})
		return &Summary{Query: query}, nil
	}
	return e.DownloadAll(query, images)
}

// outputDir determines the output directory for a query.
func (e *Engine) outputDir(query string) string {
	if e.config.Output.CreateQueryFolders {
		return filepath.Join(e.config.Output.BaseDirectory, storage.SanitizeFilename(query))
	}
	return e.config.Output.BaseDirectory
}

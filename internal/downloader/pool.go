package downloader

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"imgfetch/pkg/httpclient"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/ratelimit"
	"imgfetch/pkg/storage"
)

// Client fetches an image URL. Satisfied by httpclient.Client.
type Client interface {
	Get(rawurl string, opts *httpclient.RequestOptions) (*http.Response, error)
}

// Storage persists downloaded images. Satisfied by storage.Manager.
type Storage interface {
	Exists(filename string) bool
	Save(filename string, r io.Reader) (int64, error)
	Path(filename string) string
	Overwrite() bool
}

// Job is a single image download request.
type Job struct {
	URL    string
	Title  string
	Format string
}

// Result records the outcome of one download job.
type Result struct {
	URL       string `json:"url"`
	Status    string `json:"status"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
	Bytes     int64  `json:"bytes"`
	ElapsedMS int64  `json:"elapsed_ms"`
	FromCache bool   `json:"from_cache"`
}

const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// PoolConfig holds the tunables for a worker pool.
type PoolConfig struct {
	Workers     int
	Timeout     time.Duration
	MinFileSize int64
	MaxFileSize int64
}

// WorkerPool downloads images concurrently through a shared client.
type WorkerPool struct {
	cfg     PoolConfig
	client  Client
	store   Storage
	limiter ratelimit.Limiter
	log     logger.Logger

	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool creates a pool. Workers defaults to 3 when unset.
func NewWorkerPool(cfg PoolConfig, client Client, store Storage, limiter ratelimit.Limiter, log logger.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if limiter == nil {
		limiter = ratelimit.NewUnlimited()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &WorkerPool{
		cfg:     cfg,
		client:  client,
		store:   store,
		limiter: limiter,
		log:     log,
		jobs:    make(chan Job, cfg.Workers*2),
		results: make(chan Result, cfg.Workers*2),
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.cfg.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	go func() {
		wp.wg.Wait()
		close(wp.results)
	}()
}

// Submit enqueues a job. Returns false once the pool is closed.
func (wp *WorkerPool) Submit(job Job) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return false
	}
	wp.jobs <- job
	return true
}

// Close signals that no further jobs will be submitted. Workers drain
// the queue and the results channel closes when they finish.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
}

// Results returns the channel of download outcomes.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.results
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	for job := range wp.jobs {
		res := wp.processJob(job, id)
		wp.results <- res
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	res := Result{URL: job.URL, Status: StatusFailed}

	base := baseName(job)
	ext := formatExtension(job.Format)

	if ext != "" {
		filename := base + ext
		if wp.store.Exists(filename) && !wp.store.Overwrite() {
			res.Status = StatusSkipped
			res.Path = wp.store.Path(filename)
			res.FromCache = true
			res.ElapsedMS = time.Since(start).Milliseconds()
			wp.log.DebugWithFields("Skipping existing image", map[string]interface{}{
				"worker": workerID,
				"file":   filename,
			})
			return res
		}
	}

	if !wp.limiter.Allow() {
		wp.limiter.Wait()
	}

	resp, err := wp.client.Get(job.URL, &httpclient.RequestOptions{
		Stream:  true,
		Timeout: wp.cfg.Timeout,
	})
	if err != nil {
		// In stream mode a status failure comes back with the body
		// still open alongside the error
		if resp != nil {
			releaseBody(resp)
		}
		res.Error = err.Error()
		res.ElapsedMS = time.Since(start).Milliseconds()
		wp.log.WarnWithFields("Download failed", map[string]interface{}{
			"worker": workerID,
			"url":    job.URL,
			"error":  err.Error(),
		})
		return res
	}
	defer resp.Body.Close()

	if ext == "" {
		ext = storage.ChooseExtension(resp.Header.Get("Content-Type"), job.URL)
	}
	filename := base + ext

	if wp.store.Exists(filename) && !wp.store.Overwrite() {
		res.Status = StatusSkipped
		res.Path = wp.store.Path(filename)
		res.FromCache = true
		res.ElapsedMS = time.Since(start).Milliseconds()
		return res
	}

	if max := wp.cfg.MaxFileSize; max > 0 && resp.ContentLength > max {
		res.Error = fmt.Sprintf("content length %d exceeds limit %d", resp.ContentLength, max)
		res.ElapsedMS = time.Since(start).Milliseconds()
		return res
	}

	written, err := wp.store.Save(filename, resp.Body)
	if err != nil {
		res.Error = err.Error()
		res.ElapsedMS = time.Since(start).Milliseconds()
		return res
	}

	if err := wp.checkSize(written); err != nil {
		os.Remove(wp.store.Path(filename))
		res.Error = err.Error()
		res.ElapsedMS = time.Since(start).Milliseconds()
		return res
	}

	res.Status = StatusOK
	res.Path = wp.store.Path(filename)
	res.Bytes = written
	res.ElapsedMS = time.Since(start).Milliseconds()
	wp.log.DebugWithFields("Downloaded image", map[string]interface{}{
		"worker": workerID,
		"file":   filename,
		"bytes":  written,
	})
	return res
}

// releaseBody drains a bounded amount of a discarded response body and
// closes it so the connection returns to the pool.
func releaseBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func (wp *WorkerPool) checkSize(written int64) error {
	if min := wp.cfg.MinFileSize; min > 0 && written < min {
		return fmt.Errorf("file size %d below minimum %d", written, min)
	}
	if max := wp.cfg.MaxFileSize; max > 0 && written > max {
		return fmt.Errorf("file size %d exceeds limit %d", written, max)
	}
	return nil
}

// baseName derives a filesystem-safe name without extension for a job.
// The title wins when present, otherwise the URL path basename.
func baseName(job Job) string {
	name := strings.TrimSpace(job.Title)
	if name == "" {
		if u, err := url.Parse(job.URL); err == nil {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "image"
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		if ext := name[i:]; len(ext) <= 5 {
			name = name[:i]
		}
	}
	return storage.SanitizeFilename(name)
}

// formatExtension maps a known metadata format to a file extension.
func formatExtension(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpg", "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "bmp":
		return ".bmp"
	case "svg":
		return ".svg"
	case "webp":
		return ".webp"
	case "ico":
		return ".ico"
	default:
		return ""
	}
}

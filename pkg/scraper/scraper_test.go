package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgfetch/pkg/config"
	"imgfetch/pkg/httpclient"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metadata"
	"imgfetch/pkg/ratelimit"
	"imgfetch/pkg/search"
	"imgfetch/pkg/useragent"
)

type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	images    map[string][]byte
	errs      map[string]error
	lastAgent string
	requests  []string
}

func (f *fakeFetcher) Get(rawurl string, opts *httpclient.RequestOptions) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, rawurl)
	if opts != nil && opts.Headers != nil {
		if ua := opts.Headers["User-Agent"]; ua != "" {
			f.lastAgent = ua
		}
	}
	f.mu.Unlock()

	if err, ok := f.errs[rawurl]; ok {
		return nil, err
	}
	if page, ok := f.pages[rawurl]; ok {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader(page)),
		}, nil
	}
	if data, ok := f.images[rawurl]; ok {
		header := http.Header{}
		header.Set("Content-Type", "image/png")
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        header,
			ContentLength: int64(len(data)),
			Body:          io.NopCloser(bytes.NewReader(data)),
		}, nil
	}
	return nil, fmt.Errorf("unexpected request: %s", rawurl)
}

func (f *fakeFetcher) SetHeader(key, value string) {}

func metaBlock(url, title, format string) string {
	return fmt.Sprintf(`class="rg_meta notranslate">{"ou":%q,"pt":%q,"ity":%q,"ow":800,"oh":600}</div>`,
		url, title, format)
}

func testEngine(t *testing.T, fetcher Fetcher, outputDir string) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.BaseDirectory = outputDir
	cfg.Output.CreateQueryFolders = false
	cfg.Download.ConcurrentDownloads = 2
	return &Engine{
		client:  fetcher,
		agents:  useragent.NewRotator(nil),
		limiter: ratelimit.NewUnlimited(),
		config:  cfg,
		logger:  logger.NewNopLogger(),
	}
}

func TestSearchParsesResultPage(t *testing.T) {
	query := "mountain lake"
	page := metaBlock("http://img.example.com/one.png", "One", "png") +
		metaBlock("http://img.example.com/two.jpg", "Two", "jpg")
	fetcher := &fakeFetcher{pages: map[string]string{
		search.BuildSearchURL(query, nil): page,
	}}
	engine := testEngine(t, fetcher, t.TempDir())

	images, err := engine.Search(query, 0, nil)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "http://img.example.com/one.png", images[0].URL)
	assert.Equal(t, "Two", images[1].Title)
	assert.NotEmpty(t, fetcher.lastAgent, "search request should carry a user agent")
}

func TestSearchRespectsLimit(t *testing.T) {
	query := "cats"
	var blocks []string
	for i := 0; i < 10; i++ {
		blocks = append(blocks, metaBlock(fmt.Sprintf("http://img.example.com/%d.jpg", i), "", "jpg"))
	}
	fetcher := &fakeFetcher{pages: map[string]string{
		search.BuildSearchURL(query, nil): strings.Join(blocks, "\n"),
	}}
	engine := testEngine(t, fetcher, t.TempDir())

	images, err := engine.Search(query, 3, nil)
	require.NoError(t, err)
	assert.Len(t, images, 3)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	engine := testEngine(t, &fakeFetcher{}, t.TempDir())
	_, err := engine.Search("   ", 5, nil)
	assert.Error(t, err)
}

func TestSearchPropagatesFetchError(t *testing.T) {
	query := "dogs"
	cause := errors.New("connection refused")
	fetcher := &fakeFetcher{errs: map[string]error{
		search.BuildSearchURL(query, nil): cause,
	}}
	engine := testEngine(t, fetcher, t.TempDir())

	_, err := engine.Search(query, 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestRunDownloadsSearchResults(t *testing.T) {
	query := "sunset"
	dir := t.TempDir()
	page := metaBlock("http://img.example.com/a.png", "Alpha", "png") +
		metaBlock("http://img.example.com/b.png", "Beta", "png")
	fetcher := &fakeFetcher{
		pages: map[string]string{search.BuildSearchURL(query, nil): page},
		images: map[string][]byte{
			"http://img.example.com/a.png": bytes.Repeat([]byte("a"), 64),
			"http://img.example.com/b.png": bytes.Repeat([]byte("b"), 32),
		},
	}
	engine := testEngine(t, fetcher, dir)

	summary, err := engine.Run(query, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Downloaded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int64(96), summary.Bytes)
	assert.Len(t, summary.Results, 2)

	assert.FileExists(t, filepath.Join(dir, "Alpha.png"))
	assert.FileExists(t, filepath.Join(dir, "Beta.png"))
}

func TestRunNoResults(t *testing.T) {
	query := "nothing here"
	fetcher := &fakeFetcher{pages: map[string]string{
		search.BuildSearchURL(query, nil): "<html><body>no images</body></html>",
	}}
	engine := testEngine(t, fetcher, t.TempDir())

	summary, err := engine.Run(query, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Empty(t, summary.Results)
}

func TestDownloadAllCountsFailures(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		images: map[string][]byte{"http://img.example.com/good.png": []byte("image data")},
		errs:   map[string]error{"http://img.example.com/bad.png": errors.New("boom")},
	}
	engine := testEngine(t, fetcher, dir)

	summary, err := engine.DownloadAll("mixed", []metadata.Image{
		{URL: "http://img.example.com/good.png", Format: "png"},
		{URL: "http://img.example.com/bad.png", Format: "png"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
}

func TestDownloadAllSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	data := []byte("image data")
	fetcher := &fakeFetcher{images: map[string][]byte{
		"http://img.example.com/pic.png": data,
	}}
	engine := testEngine(t, fetcher, dir)

	images := []metadata.Image{{URL: "http://img.example.com/pic.png", Format: "png"}}

	first, err := engine.DownloadAll("repeat", images)
	require.NoError(t, err)
	require.Equal(t, 1, first.Downloaded)

	second, err := engine.DownloadAll("repeat", images)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Downloaded)
	assert.Equal(t, 1, second.Skipped)
	assert.True(t, second.Results[0].FromCache)
}

func TestOutputDirQueryFolders(t *testing.T) {
	engine := testEngine(t, &fakeFetcher{}, "/data/images")
	engine.config.Output.CreateQueryFolders = true
	assert.Equal(t, filepath.Join("/data/images", "red roses"), engine.outputDir("red roses"))

	engine.config.Output.CreateQueryFolders = false
	assert.Equal(t, "/data/images", engine.outputDir("red roses"))
}

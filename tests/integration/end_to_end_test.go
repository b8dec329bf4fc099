package integration

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgfetch/internal/downloader"
	"imgfetch/pkg/httpclient"
	"imgfetch/pkg/storage"
)

func testPolicy() *httpclient.Policy {
	return &httpclient.Policy{
		MaxRetries:      3,
		BackoffBase:     time.Millisecond,
		BackoffJitter:   0,
		MaxBackoffTotal: time.Second,
	}
}

func TestDownloadPipeline(t *testing.T) {
	server := NewMockImageServer()
	defer server.Close()

	imgA := bytes.Repeat([]byte{0xFF, 0xD8, 0xFF}, 100)
	imgB := bytes.Repeat([]byte{0x89, 0x50, 0x4E}, 200)
	server.AddImage("/photos/a.jpg", imgA)
	server.AddImage("/photos/b.jpg", imgB)

	dir := t.TempDir()
	store, err := storage.NewManager(dir, false)
	require.NoError(t, err)

	client := httpclient.NewClient(httpclient.ClientOptions{Policy: testPolicy()})

	pool := downloader.NewWorkerPool(downloader.PoolConfig{Workers: 2}, client, store, nil, nil)
	pool.Start()
	pool.Submit(downloader.Job{URL: server.URL("/photos/a.jpg")})
	pool.Submit(downloader.Job{URL: server.URL("/photos/b.jpg")})
	pool.Close()

	var ok int
	for res := range pool.Results() {
		if res.Status == downloader.StatusOK {
			ok++
		} else {
			t.Errorf("unexpected result for %s: %s (%s)", res.URL, res.Status, res.Error)
		}
	}
	require.Equal(t, 2, ok)

	dataA, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, imgA, dataA)
	dataB, err := os.ReadFile(filepath.Join(dir, "b.jpg"))
	require.NoError(t, err)
	assert.Equal(t, imgB, dataB)
}

func TestDownloadRecoversFromServerErrors(t *testing.T) {
	server := NewMockImageServer()
	defer server.Close()

	img := bytes.Repeat([]byte("x"), 50)
	server.AddImage("/photos/flaky.jpg", img)
	server.FailTimes("/photos/flaky.jpg", 503, 2)

	dir := t.TempDir()
	store, err := storage.NewManager(dir, false)
	require.NoError(t, err)

	client := httpclient.NewClient(httpclient.ClientOptions{Policy: testPolicy()})

	pool := downloader.NewWorkerPool(downloader.PoolConfig{Workers: 1}, client, store, nil, nil)
	pool.Start()
	pool.Submit(downloader.Job{URL: server.URL("/photos/flaky.jpg")})
	pool.Close()

	results := drain(pool)
	require.Len(t, results, 1)
	assert.Equal(t, downloader.StatusOK, results[0].Status)
	assert.Equal(t, 3, server.Attempts("/photos/flaky.jpg"))

	data, err := os.ReadFile(filepath.Join(dir, "flaky.jpg"))
	require.NoError(t, err)
	assert.Equal(t, img, data)
}

func TestDownloadHonorsRetryAfter(t *testing.T) {
	server := NewMockImageServer()
	defer server.Close()

	img := []byte("throttled image")
	server.AddImage("/photos/throttled.jpg", img)
	server.FailTimes("/photos/throttled.jpg", 429, 1)

	client := httpclient.NewClient(httpclient.ClientOptions{Policy: testPolicy()})

	resp, err := client.Get(server.URL("/photos/throttled.jpg"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, server.Attempts("/photos/throttled.jpg"))
}

func TestDownloadGivesUpAfterRetries(t *testing.T) {
	server := NewMockImageServer()
	defer server.Close()

	server.AddImage("/photos/broken.jpg", []byte("never served"))
	server.FailTimes("/photos/broken.jpg", 500, 100)

	dir := t.TempDir()
	store, err := storage.NewManager(dir, false)
	require.NoError(t, err)

	client := httpclient.NewClient(httpclient.ClientOptions{Policy: testPolicy()})

	pool := downloader.NewWorkerPool(downloader.PoolConfig{Workers: 1}, client, store, nil, nil)
	pool.Start()
	pool.Submit(downloader.Job{URL: server.URL("/photos/broken.jpg")})
	pool.Close()

	results := drain(pool)
	require.Len(t, results, 1)
	assert.Equal(t, downloader.StatusFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	// initial attempt plus three retries
	assert.Equal(t, 4, server.Attempts("/photos/broken.jpg"))

	_, err = os.Stat(filepath.Join(dir, "broken.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestDuplicateDetectionAcrossRuns(t *testing.T) {
	server := NewMockImageServer()
	defer server.Close()

	server.AddImage("/photos/keep.jpg", []byte("original"))

	dir := t.TempDir()

	run := func() downloader.Result {
		store, err := storage.NewManager(dir, false)
		require.NoError(t, err)
		client := httpclient.NewClient(httpclient.ClientOptions{Policy: testPolicy()})
		pool := downloader.NewWorkerPool(downloader.PoolConfig{Workers: 1}, client, store, nil, nil)
		pool.Start()
		pool.Submit(downloader.Job{URL: server.URL("/photos/keep.jpg"), Format: "jpg"})
		pool.Close()
		results := drain(pool)
		require.Len(t, results, 1)
		return results[0]
	}

	first := run()
	assert.Equal(t, downloader.StatusOK, first.Status)

	second := run()
	assert.Equal(t, downloader.StatusSkipped, second.Status)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, server.Attempts("/photos/keep.jpg"))
}

func drain(pool *downloader.WorkerPool) []downloader.Result {
	var results []downloader.Result
	for res := range pool.Results() {
		results = append(results, res)
	}
	return results
}

package scraper

import (
	"net/http"

	"imgfetch/pkg/httpclient"
)

// Fetcher is the HTTP surface the engine needs. Satisfied by
// httpclient.Client.
type Fetcher interface {
	Get(rawurl string, opts *httpclient.RequestOptions) (*http.Response, error)
	SetHeader(key, value string)
}

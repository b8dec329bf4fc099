// Package scraper orchestrates the full image fetch pipeline: building
// a search URL, fetching and parsing the result page, and downloading
// the discovered images through a concurrent worker pool.
package scraper

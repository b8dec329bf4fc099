// Package search builds image-search URLs from a query and filter options.
//
// Filters are compiled into the engine's "tbs" parameter through static
// lookup tables. Unrecognized filter values are skipped rather than
// rejected, matching the engine's own tolerance for unknown parameters.
package search

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL of the image search engine
	BaseURL = "https://www.google.com/search"

	// searchSuffix carries the fixed parameters identifying an image search
	searchSuffix = "&espv=2&biw=1366&bih=667&site=webhp&source=lnms&tbm=isch"

	// searchTrailer carries the fixed parameters appended after the filters
	searchTrailer = "&sa=X&ei=XosDVaCXD8TasATItgE&ved=0CAcQ_AUoAg"
)

// Filters holds the recognized search filter options. Zero-value fields
// are omitted from the URL.
type Filters struct {
	Color      string // red, orange, yellow, green, teal, blue, purple, pink, white, gray, black, brown
	ColorType  string // full-color, black-and-white, transparent
	Size       string // large, medium, icon, >400*300, >2MP, ...
	Type       string // face, photo, clipart, line-drawing, animated
	Time       string // past-24-hours, past-7-days, past-month, past-year
	Format     string // jpg, gif, png, bmp, svg, webp, ico
	SafeSearch bool
}

var colorParams = map[string]string{
	"red":    "ic:specific,isc:red",
	"orange": "ic:specific,isc:orange",
	"yellow": "ic:specific,isc:yellow",
	"green":  "ic:specific,isc:green",
	"teal":   "ic:specific,isc:teal",
	"blue":   "ic:specific,isc:blue",
	"purple": "ic:specific,isc:purple",
	"pink":   "ic:specific,isc:pink",
	"white":  "ic:specific,isc:white",
	"gray":   "ic:specific,isc:gray",
	"black":  "ic:specific,isc:black",
	"brown":  "ic:specific,isc:brown",
}

var colorTypeParams = map[string]string{
	"full-color":      "ic:color",
	"black-and-white": "ic:gray",
	"transparent":     "ic:trans",
}

var sizeParams = map[string]string{
	"large":     "isz:l",
	"medium":    "isz:m",
	"icon":      "isz:i",
	">400*300":  "isz:lt,islt:qsvga",
	">640*480":  "isz:lt,islt:vga",
	">800*600":  "isz:lt,islt:svga",
	">1024*768": "isz:lt,islt:xga",
	">2MP":      "isz:lt,islt:2mp",
	">4MP":      "isz:lt,islt:4mp",
	">6MP":      "isz:lt,islt:6mp",
	">8MP":      "isz:lt,islt:8mp",
	">10MP":     "isz:lt,islt:10mp",
	">12MP":     "isz:lt,islt:12mp",
	">15MP":     "isz:lt,islt:15mp",
	">20MP":     "isz:lt,islt:20mp",
	">40MP":     "isz:lt,islt:40mp",
	">70MP":     "isz:lt,islt:70mp",
}

var typeParams = map[string]string{
	"face":         "itp:face",
	"photo":        "itp:photo",
	"clipart":      "itp:clipart",
	"line-drawing": "itp:lineart",
	"animated":     "itp:animated",
}

var timeParams = map[string]string{
	"past-24-hours": "qdr:d",
	"past-7-days":   "qdr:w",
	"past-month":    "qdr:m",
	"past-year":     "qdr:y",
}

var formatParams = map[string]string{
	"jpg":  "ift:jpg",
	"gif":  "ift:gif",
	"png":  "ift:png",
	"bmp":  "ift:bmp",
	"svg":  "ift:svg",
	"webp": "webp",
	"ico":  "ift:ico",
}

// buildFilterParams compiles filters into the "&tbs=" URL fragment.
// Returns an empty string when no recognized filter is set.
func buildFilterParams(f *Filters) string {
	if f == nil {
		return ""
	}

	// Fixed order so the same filters always yield the same URL
	lookups := []struct {
		value string
		table map[string]string
	}{
		{f.Color, colorParams},
		{f.ColorType, colorTypeParams},
		{f.Size, sizeParams},
		{f.Type, typeParams},
		{f.Time, timeParams},
		{f.Format, formatParams},
	}

	var parts []string
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		if param, ok := l.table[l.value]; ok {
			parts = append(parts, param)
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "&tbs=" + strings.Join(parts, ",")
}

// BuildSearchURL constructs the image search URL for a query
func BuildSearchURL(query string, f *Filters) string {
	u := fmt.Sprintf("%s?q=%s%s%s%s", BaseURL, url.QueryEscape(query), searchSuffix, buildFilterParams(f), searchTrailer)

	if f != nil && f.SafeSearch {
		u += "&safe=active"
	}

	return u
}

// ValidateQuery reports whether a search query is usable
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search query cannot be empty")
	}
	return nil
}

// Package metadata extracts image metadata from search result pages.
//
// Result pages embed one JSON object per image inside marked <div> blocks.
// Extraction is a plain substring scan: find the next marker, slice out the
// JSON object, decode it, repeat. Blocks that fail to decode are skipped.
package metadata

import (
	"encoding/json"
	"strings"
)

// marker identifies the div wrapping each embedded metadata object
const marker = `class="rg_meta notranslate">`

// Image is the metadata for one search result
type Image struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Title        string `json:"title"`
	Source       string `json:"source"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
	Host         string `json:"host"`
}

// rawMeta mirrors the engine's short field names
type rawMeta struct {
	Format       string `json:"ity"`
	Height       int    `json:"oh"`
	Width        int    `json:"ow"`
	URL          string `json:"ou"`
	Title        string `json:"pt"`
	Host         string `json:"rh"`
	Source       string `json:"ru"`
	ThumbnailURL string `json:"tu"`
}

func (r *rawMeta) toImage() Image {
	return Image{
		URL:          r.URL,
		ThumbnailURL: r.ThumbnailURL,
		Title:        r.Title,
		Source:       r.Source,
		Width:        r.Width,
		Height:       r.Height,
		Format:       r.Format,
		Host:         r.Host,
	}
}

// Extract scans a result page for embedded metadata blocks and returns up
// to limit images. A limit <= 0 means no limit.
func Extract(page string, limit int) []Image {
	var images []Image

	for limit <= 0 || len(images) < limit {
		img, rest, ok := next(page)
		if !ok {
			break
		}
		page = rest

		if img != nil {
			images = append(images, *img)
		}
	}

	return images
}

// next finds the following metadata block. It returns the decoded image
// (nil when the block is malformed), the unscanned remainder of the page,
// and whether a block was found at all.
func next(page string) (*Image, string, bool) {
	idx := strings.Index(page, marker)
	if idx < 0 {
		return nil, "", false
	}

	objStart := strings.Index(page[idx:], "{")
	if objStart < 0 {
		return nil, "", false
	}
	objStart += idx

	objEnd := strings.Index(page[objStart:], "</div>")
	if objEnd < 0 {
		return nil, "", false
	}
	objEnd += objStart

	raw := page[objStart:objEnd]
	rest := page[objEnd:]

	var rm rawMeta
	if err := json.Unmarshal([]byte(raw), &rm); err != nil {
		return nil, rest, true
	}

	img := rm.toImage()
	return &img, rest, true
}

package metadata

import (
	"fmt"
	"strings"
	"testing"
)

func block(jsonObj string) string {
	return fmt.Sprintf(`<div class="rg_meta notranslate">%s</div>`, jsonObj)
}

func page(blocks ...string) string {
	return "<html><body>" + strings.Join(blocks, "\n<span>filler</span>\n") + "</body></html>"
}

const sampleObj = `{"ity":"jpg","oh":768,"ow":1024,"ou":"https://img.example.com/a.jpg","pt":"A sunset","rh":"example.com","ru":"https://example.com/page","tu":"https://thumb.example.com/a.jpg"}`

func TestExtractSingle(t *testing.T) {
	images := Extract(page(block(sampleObj)), 10)

	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}

	img := images[0]
	if img.URL != "https://img.example.com/a.jpg" {
		t.Errorf("URL = %q", img.URL)
	}
	if img.ThumbnailURL != "https://thumb.example.com/a.jpg" {
		t.Errorf("ThumbnailURL = %q", img.ThumbnailURL)
	}
	if img.Title != "A sunset" {
		t.Errorf("Title = %q", img.Title)
	}
	if img.Source != "https://example.com/page" {
		t.Errorf("Source = %q", img.Source)
	}
	if img.Width != 1024 || img.Height != 768 {
		t.Errorf("dimensions = %dx%d", img.Width, img.Height)
	}
	if img.Format != "jpg" {
		t.Errorf("Format = %q", img.Format)
	}
	if img.Host != "example.com" {
		t.Errorf("Host = %q", img.Host)
	}
}

func TestExtractMultipleRespectsLimit(t *testing.T) {
	blocks := make([]string, 5)
	for i := range blocks {
		blocks[i] = block(fmt.Sprintf(`{"ou":"https://img.example.com/%d.jpg"}`, i))
	}
	html := page(blocks...)

	images := Extract(html, 3)
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	for i, img := range images {
		want := fmt.Sprintf("https://img.example.com/%d.jpg", i)
		if img.URL != want {
			t.Errorf("image %d URL = %q, want %q", i, img.URL, want)
		}
	}

	all := Extract(html, 0)
	if len(all) != 5 {
		t.Errorf("limit 0 should return all images, got %d", len(all))
	}
}

func TestExtractSkipsMalformedBlocks(t *testing.T) {
	html := page(
		block(`{"ou":"https://img.example.com/good1.jpg"}`),
		block(`{not json at all`),
		block(`{"ou":"https://img.example.com/good2.jpg"}`),
	)

	images := Extract(html, 10)
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].URL != "https://img.example.com/good1.jpg" ||
		images[1].URL != "https://img.example.com/good2.jpg" {
		t.Errorf("unexpected URLs: %v", images)
	}
}

func TestExtractNoBlocks(t *testing.T) {
	if images := Extract("<html><body>no results</body></html>", 10); images != nil {
		t.Errorf("expected nil, got %v", images)
	}
	if images := Extract("", 10); images != nil {
		t.Errorf("expected nil for empty page, got %v", images)
	}
}

func TestExtractUnicodeEscapes(t *testing.T) {
	html := page(block(`{"ou":"https://img.example.com/a.jpg","pt":"café tables"}`))

	images := Extract(html, 1)
	if len(images) != 1 {
		t.Fatal("expected 1 image")
	}
	if images[0].Title != "café tables" {
		t.Errorf("Title = %q", images[0].Title)
	}
}

func TestExtractTruncatedBlock(t *testing.T) {
	// Marker present but the closing tag never arrives
	html := `<div class="rg_meta notranslate">{"ou":"https://x"`

	if images := Extract(html, 10); images != nil {
		t.Errorf("expected nil for truncated block, got %v", images)
	}
}

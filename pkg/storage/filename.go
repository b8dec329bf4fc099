package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxFilenameLen caps sanitized filenames, extension included
const maxFilenameLen = 120

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	problemChars = regexp.MustCompile(`[<>:"|?*]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// windowsReserved are base names that cannot be used as filenames on Windows
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename returns a filename safe for all common filesystems.
//
// Path separators become underscores, control and shell-problematic
// characters are removed, whitespace runs collapse to one space, the result
// is capped at 120 characters preserving the extension, and Windows
// reserved names get an underscore suffix on the base name.
func SanitizeFilename(name string) string {
	if name == "" {
		return "unnamed"
	}

	s := strings.ReplaceAll(name, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = controlChars.ReplaceAllString(s, "")
	s = problemChars.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.Trim(s, " .")

	if s == "" {
		return "unnamed"
	}

	base, ext := s, ""
	if i := strings.LastIndex(s, "."); i > 0 {
		base, ext = s[:i], s[i:]
	}

	if maxBase := maxFilenameLen - len(ext); len(base) > maxBase {
		base = strings.TrimRight(base[:maxBase], " .")
	}

	if windowsReserved[strings.ToUpper(base)] {
		base += "_"
	}

	return base + ext
}

// contentTypeExtensions maps image content types to normalized extensions
var contentTypeExtensions = map[string]string{
	"image/jpeg":     ".jpg",
	"image/jpg":      ".jpg",
	"image/png":      ".png",
	"image/gif":      ".gif",
	"image/webp":     ".webp",
	"image/bmp":      ".bmp",
	"image/x-ms-bmp": ".bmp",
	"image/tiff":     ".tif",
	"image/x-tiff":   ".tif",
	"image/svg+xml":  ".svg",
	"image/x-icon":   ".ico",
}

// validExtensions are the extensions accepted from a URL fallback
var validExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".svg": true, ".ico": true,
}

// ChooseExtension picks a file extension from the Content-Type header,
// falling back to the URL path, defaulting to ".jpg".
func ChooseExtension(contentType, urlFallback string) string {
	if contentType != "" {
		baseType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if ext, ok := contentTypeExtensions[baseType]; ok {
			return ext
		}
	}

	if urlFallback != "" {
		if parsed, err := url.Parse(urlFallback); err == nil {
			path, err := url.PathUnescape(parsed.Path)
			if err != nil {
				path = parsed.Path
			}
			ext := strings.ToLower(filepath.Ext(path))
			switch ext {
			case ".jpeg":
				ext = ".jpg"
			case ".tiff":
				ext = ".tif"
			}
			if validExtensions[ext] {
				return ext
			}
		}
	}

	return ".jpg"
}

// EnsureUniquePath returns a path under destDir that does not exist yet,
// appending " (n)" before the extension when needed.
func EnsureUniquePath(destDir, baseName, ext string) string {
	target := filepath.Join(destDir, baseName+ext)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}

	for counter := 1; ; counter++ {
		target = filepath.Join(destDir, fmt.Sprintf("%s (%d)%s", baseName, counter, ext))
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return target
		}
	}
}

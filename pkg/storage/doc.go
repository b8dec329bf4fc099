// Package storage handles file persistence for downloaded images.
//
// It provides filesystem-safe filename sanitization, extension selection
// from Content-Type or URL, collision-free path generation, and a Manager
// that writes files atomically (temp file, fsync, rename) with duplicate
// detection against already-downloaded files.
package storage

// Package ingest finds benchmark input files on disk and watches their
// directories for changes.
package ingest

// Document is one input file found under a scanned root.
type Document struct {
	Path string // as walked, rooted at the scan root
	Stem string // base name without extension
	Ext  string // lower-case, without dot
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// ScanOptions tunes ScanDirectory. A nil Match accepts benchmark documents.
type ScanOptions struct {
	SkipHidden bool
	Match      func(ext string) bool
}

package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-bench/constants"
)

// IsReferenceExt matches reference-record files.
func IsReferenceExt(ext string) bool {
	return constants.NormalizeExt(ext) == constants.ReferenceExt
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

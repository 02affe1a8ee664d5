package constants

import "strings"

// DocumentExtensions holds the default document extensions picked up by discovery.
var DocumentExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
}

// ReferenceExt is the extension of reference-record files in the labels directory.
const ReferenceExt = "json"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsDocumentExt reports whether ext (with or without dot) names a benchmark document.
func IsDocumentExt(ext string) bool {
	_, ok := DocumentExtensions[NormalizeExt(ext)]
	return ok
}

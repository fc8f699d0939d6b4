package filesystem

import (
	"path/filepath"
	"strings"
)

// DocumentID derives the document ID for a local file.
// Handles file:// URIs and relative paths; the result is an absolute, clean path.
func DocumentID(uri string) string {
	path := strings.TrimPrefix(uri, "file://")
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

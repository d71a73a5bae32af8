package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docproc/constants"
)

// AllowedExt checks if a file extension is in the allowed set (pdf, raster images, heic).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}

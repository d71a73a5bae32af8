package constants

import "strings"

// ImageExtensions are the raster formats classified as DocumentType Image.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tiff": {},
	"webp": {},
}

// HEICExtensions are phone-photo formats that need an external converter.
var HEICExtensions = map[string]struct{}{
	"heic": {},
	"heif": {},
}

// AllowedExtensions holds the default allowed file extensions for directory ingestion.
var AllowedExtensions = func() map[string]struct{} {
	m := map[string]struct{}{"pdf": {}}
	for k := range ImageExtensions {
		m[k] = struct{}{}
	}
	for k := range HEICExtensions {
		m[k] = struct{}{}
	}
	return m
}()

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func IsImageExt(ext string) bool {
	_, ok := ImageExtensions[NormalizeExt(ext)]
	return ok
}

func IsHEICExt(ext string) bool {
	_, ok := HEICExtensions[NormalizeExt(ext)]
	return ok
}

func IsPDFExt(ext string) bool {
	return NormalizeExt(ext) == "pdf"
}

package constants

import "strings"

// Source formats of an ingested document.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TXT   = "TXT"
)

// SourceTypes holds the allowed values for a document's source format.
var SourceTypes = []string{PDF, IMAGE, TXT}

// AllowedExtensions holds the default allowed file extensions for document ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"webp": {},
	"heic": {},
	"heif": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps an extension to PDF, TXT or IMAGE. Unknown extensions map to "".
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if _, ok := AllowedExtensions[ext]; !ok {
		return ""
	}
	switch ext {
	case "pdf":
		return PDF
	case "txt":
		return TXT
	default:
		return IMAGE
	}
}

// IsHEICExt reports whether ext needs conversion before OCR.
func IsHEICExt(ext string) bool {
	ext = NormalizeExt(ext)
	return ext == "heic" || ext == "heif"
}

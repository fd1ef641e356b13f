package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doc-intake/constants"
)

// AllowedExt reports whether ext names a format the OCR stage can read.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden reports whether the last path element is a dot file or dot directory.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}

// Candidate reports whether the file at path should be ingested.
// Editor swap files and partial downloads never qualify.
func Candidate(path string, skipHidden bool) bool {
	if skipHidden && IsHidden(path) {
		return false
	}
	base := strings.ToLower(filepath.Base(path))
	if strings.HasPrefix(base, "~$") || strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".crdownload") {
		return false
	}
	return AllowedExt(filepath.Ext(path))
}

// WithinRoots reports whether path resolves to a location inside one of roots.
// Symlinks are followed on both sides, so a link out of a root does not qualify.
// A missing file is judged by its resolved parent directory.
func WithinRoots(path string, roots []string) bool {
	target, err := resolve(path)
	if err != nil {
		return false
	}
	for _, root := range roots {
		if root == "" {
			continue
		}
		base, err := resolve(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(base, target)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		return r, nil
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

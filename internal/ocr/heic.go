package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type ctxKey string

const (
	ctxKeyContentHash ctxKey = "ocr.content_hash_hex"
)

// WithContentHash stores the hex-encoded SHA256 for downstream reuse.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyContentHash).(string)
	return v, ok
}

// convertHEICtoPNG converts a HEIC/HEIF photo to PNG with the chosen converter:
// "heif-convert" | "magick" | "sips".
// If cacheDir and hashHex are non-empty, the PNG is kept (and reused) at
//
//	{cacheDir}/{hashHex}.png
//
// Returns (outPath, warnings, cleanup, err). cleanup is nil when the cached path is returned.
func convertHEICtoPNG(
	ctx context.Context,
	r Runner,
	logger *slog.Logger,
	converter string,
	in string,
	cacheDir string,
	hashHex string,
) (string, []string, func(), error) {
	useCache := cacheDir != "" && hashHex != ""
	cached := filepath.Join(cacheDir, hashHex+".png")
	if useCache {
		if st, err := os.Stat(cached); err == nil && !st.IsDir() {
			logger.Debug("using cached heic->png", "cache", cached)
			return cached, nil, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "di-heic-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	var args []string
	switch converter {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return "", nil, cleanup, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if _, errb, err := r.Run(ctx, converter, logger, args...); err != nil {
		return "", []string{string(errb)}, cleanup, fmt.Errorf("%s failed: %w", converter, err)
	}
	if _, statErr := os.Stat(out); statErr != nil {
		return "", nil, cleanup, fmt.Errorf("HEIC conversion produced no output: %v", statErr)
	}
	if !useCache {
		return out, nil, cleanup, nil
	}

	// rename may fail across devices; copy instead
	if err := os.Rename(out, cached); err != nil {
		if err := copyFile(out, cached); err != nil {
			cleanup()
			return "", nil, nil, err
		}
	}
	cleanup()
	logger.Debug("cached heic->png", "cache", cached)
	return cached, nil, nil, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/doc-intake/constants"
)

// minTextLayerRunes is the amount of non-space text a PDF text layer needs
// before it is trusted over rasterized OCR.
const minTextLayerRunes = 16

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Language: e.cfg.TesseractLang}

	txt, pages, err := e.pdfTextLayer(path)
	if err != nil {
		res.Warnings = append(res.Warnings, "text layer: "+err.Error())
	}
	if countLetters(txt) >= minTextLayerRunes {
		res.Text = Normalize(txt)
		res.Pages = pages
		res.Method = "pdf-text"
		res.Confidence = blendConfidence(1.0, HeuristicConfidence(res.Text))
		return res, nil
	}

	e.logger.Debug("pdf has no usable text layer, rasterizing", "path", path)
	txt, pages, warns, err := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(txt)
	res.Pages = pages
	res.Method = "pdf-ocr"
	res.Confidence = HeuristicConfidence(res.Text)
	return res, nil
}

// pdfTextLayer reads embedded text page by page, honoring MaxPages.
func (e *Extractor) pdfTextLayer(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	if e.cfg.MaxPages > 0 && n > e.cfg.MaxPages {
		n = e.cfg.MaxPages
	}
	var b strings.Builder
	for pageNum := 1; pageNum <= n; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return b.String(), n, fmt.Errorf("page %d: %w", pageNum, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), n, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, int, []string, error) {
	tmpDir, err := os.MkdirTemp("", "di-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, append(args, path, prefix)...)
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// prefix-1.png, prefix-2.png, ... (zero padded when there are 10+ pages)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	texts := make([]string, len(matches))
	pageWarns := make([][]string, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PageWorkers)
	for i, img := range matches {
		g.Go(func() error {
			txt, w, err := e.tesseractOCR(gctx, img)
			if err != nil {
				// unreadable pages become warnings
				pageWarns[i] = append(w, fmt.Sprintf("page %d: %v", i+1, err))
				return nil
			}
			texts[i] = txt
			pageWarns[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, nil, err
	}

	var (
		b     strings.Builder
		warns []string
	)
	for i, txt := range texts {
		warns = append(warns, pageWarns[i]...)
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, warns, err
	}
	return b.String(), len(matches), warns, nil
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

type stubRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (s *stubRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name+" "+strings.Join(args, " "))
	s.mu.Unlock()
	return s.fn(name, args)
}

func (s *stubRunner) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

const cardText = "GOVERNMENT OF INDIA\nName: Ravi Kumar\nDOB: 05/03/1988\nGender: M\n1234 5678 9012\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNormalize(t *testing.T) {
	in := "Name:\tRavi   Kumar  \r\n\r\n\r\n\r\nDOB: 05/03/1988\r\n"
	assert.Equal(t, "Name: Ravi Kumar\n\nDOB: 05/03/1988", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestNormalizeKeepsLeadingZeros(t *testing.T) {
	assert.Equal(t, "DOB: 05/03/1988", Normalize("DOB: 05/03/1988"))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line endings", "a\r\nb\rc", "a\nb\nc"},
		{"blank runs", "a\n\n\n\nb", "a\n\nb"},
		{"whitespace only lines", "a\n   \n\t\nb", "a\n\nb"},
		{"unsafe punctuation", "|| Name ; Ravi* ~Kumar!", "Name Ravi Kumar"},
		{"safe punctuation", "Passport No.: K-12/34, #5 (A&B) O'Neil", "Passport No.: K-12/34, #5 (A&B) O'Neil"},
		{"horizontal whitespace", "a \t  b", "a b"},
		{"unicode letters", "नाम: रवि", "नाम: रवि"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanThenExtract(t *testing.T) {
	noisy := "|| GOVERNMENT OF INDIA ||\r\n" +
		"~Name : Priya Sharma;\r\n" +
		"DOB :: 12/11/1992\r\n" +
		"Sex: FEMALE*\r\n" +
		"Address: 9 Lake Road,  \r\n" +
		"   Pune ** \r\n" +
		"\r\n\r\n\r\n" +
		"4321-8765-2109 ~~\r\n"

	got := fields.Extract(Clean(noisy))
	assert.Equal(t, fields.ExtractedFields{
		FullName:    "Priya Sharma",
		DateOfBirth: "1992-11-12",
		IDNumber:    "4321 8765 2109",
		Gender:      "Female",
		Address:     "9 Lake Road, Pune",
	}, got)
}

func TestHeuristicConfidence(t *testing.T) {
	assert.InDelta(t, 0.2, HeuristicConfidence("hello"), 1e-6)

	c := HeuristicConfidence(cardText)
	assert.GreaterOrEqual(t, c, float32(ImageConfidenceThreshold))
	assert.LessOrEqual(t, c, float32(1.0))
}

func TestMeanTSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t12\t90\tName\n" +
		"5\t1\t1\t1\t1\t2\t70\t10\t50\t12\t70\tRavi\n"
	assert.InDelta(t, 0.8, meanTSVConfidence(tsv), 1e-6)
	assert.Zero(t, meanTSVConfidence("level\tconf\n"))
}

func TestExtract_TextFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "card.txt", "Name:  Ravi Kumar\r\nDOB: 05/03/1988\r\n")

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "TXT", res.SourceType)
	assert.Equal(t, "plain-text", res.Method)
	assert.Equal(t, "Name: Ravi Kumar\nDOB: 05/03/1988", res.Text)
}

func TestExtract_Image(t *testing.T) {
	p := writeFile(t, t.TempDir(), "card.png", "png-bytes")
	r := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		return []byte(cardText + "-----\n"), nil, nil
	}}

	e := NewExtractor(Config{TessdataDir: "/share/tessdata"}, nil).WithRunner(r)
	res, err := e.Extract(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "IMAGE", res.SourceType)
	assert.Equal(t, "image-ocr", res.Method)
	assert.NotContains(t, res.Text, "-----")
	assert.Contains(t, res.Text, "Name: Ravi Kumar")
	require.Len(t, r.calls, 1)
	assert.Equal(t, "tesseract "+p+" stdout -l eng --tessdata-dir /share/tessdata", r.calls[0])
}

func TestExtract_ImageTesseractFailure(t *testing.T) {
	p := writeFile(t, t.TempDir(), "card.jpg", "jpg-bytes")
	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	}}

	res, err := NewExtractor(Config{}, nil).WithRunner(r).Extract(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract")
	assert.Equal(t, []string{"Error opening data file"}, res.Warnings)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), "/tmp/card.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestExtract_HEICUsesCache(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "card.heic", "heic-bytes")
	cacheDir := filepath.Join(dir, "cache")

	r := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		if name == "magick" {
			return nil, nil, os.WriteFile(args[1], []byte("png"), 0o644)
		}
		return []byte(cardText), nil, nil
	}}
	e := NewExtractor(Config{HeicConverter: "magick", ArtifactCacheDir: cacheDir}, nil).WithRunner(r)
	ctx := WithContentHash(context.Background(), "abc123")

	for i := 0; i < 2; i++ {
		res, err := e.Extract(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "IMAGE", res.SourceType)
	}
	assert.Equal(t, 1, r.count("magick"))
	assert.Equal(t, 2, r.count("tesseract "+filepath.Join(cacheDir, "abc123.png")))
}

func TestExtract_HEICUnknownConverter(t *testing.T) {
	p := writeFile(t, t.TempDir(), "card.heif", "heic-bytes")

	_, err := NewExtractor(Config{HeicConverter: "gimp"}, nil).
		WithRunner(&stubRunner{fn: func(string, []string) ([]byte, []byte, error) { return nil, nil, nil }}).
		Extract(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEIC not supported")
}

func TestExtract_ScannedPDF(t *testing.T) {
	p := writeFile(t, t.TempDir(), "scan.pdf", "not really a pdf")

	pages := map[string]string{
		"page-1.png": "Name: Ravi Kumar\nDOB: 05/03/1988",
		"page-2.png": "Address: 12 MG Road\nBangalore",
	}
	r := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftoppm":
			prefix := args[len(args)-1]
			for page := range pages {
				suffix := strings.TrimPrefix(page, "page")
				if err := os.WriteFile(prefix+suffix, []byte("png"), 0o644); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		case "tesseract":
			return []byte(pages[filepath.Base(args[0])]), nil, nil
		}
		return nil, nil, errors.New("unexpected command " + name)
	}}

	res, err := NewExtractor(Config{PageWorkers: 2}, nil).WithRunner(r).Extract(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "PDF", res.SourceType)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "Name: Ravi Kumar\nDOB: 05/03/1988\n\nAddress: 12 MG Road\nBangalore", res.Text)
	assert.NotEmpty(t, res.Warnings)

	got := fields.Extract(res.Text)
	assert.Equal(t, "Ravi Kumar", got.FullName)
	assert.Equal(t, "12 MG Road, Bangalore", got.Address)
}

func TestExtract_ScannedPDFNoPages(t *testing.T) {
	p := writeFile(t, t.TempDir(), "empty.pdf", "not really a pdf")
	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) { return nil, nil, nil }}

	_, err := NewExtractor(Config{}, nil).WithRunner(r).Extract(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pages rendered")
}

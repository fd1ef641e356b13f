package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		clean = pflag.Bool("clean", false, "strip OCR noise before extracting")
		trace = pflag.Bool("trace", false, "include the rule that produced each field")
	)
	pflag.Usage = func() {
		printError("usage: parsetext [--clean] [--trace] [file]\nreads stdin when no file is given\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	var (
		raw []byte
		err error
	)
	switch pflag.NArg() {
	case 0:
		raw, err = io.ReadAll(os.Stdin)
	case 1:
		raw, err = os.ReadFile(pflag.Arg(0))
	default:
		pflag.Usage()
		os.Exit(2)
	}
	if err != nil {
		printError("Error: reading input: %v\n", err)
		os.Exit(1)
	}

	text := string(raw)
	if *clean {
		text = ocr.Clean(text)
	}

	var out any
	if *trace {
		f, matches := fields.NewExtractor().ExtractWithTrace(text)
		out = struct {
			Fields fields.ExtractedFields `json:"fields"`
			Trace  []fields.Match         `json:"trace"`
		}{f, matches}
	} else {
		out = fields.Extract(text)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		printError("Error: encoding output: %v\n", err)
		os.Exit(1)
	}
}

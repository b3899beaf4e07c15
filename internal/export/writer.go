package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"smartdiff/internal/logging"
	"smartdiff/internal/tracker"
	"smartdiff/internal/version"
)

// Writer serializes tracking results into report files.
type Writer struct {
	logger *logging.Logger
}

// NewWriter creates a report writer.
func NewWriter(logger *logging.Logger) *Writer {
	return &Writer{logger: logger}
}

// NewReport wraps a tracking result in a report envelope with a fresh ID.
func NewReport(source, target string, result *tracker.Result) *Report {
	return &Report{
		ID:          uuid.New().String(),
		Tool:        "smartdiff",
		Version:     version.Version,
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Target:      target,
		Result:      result,
	}
}

// Write encodes the report to w according to the options.
func (wr *Writer) Write(w io.Writer, report *Report, opts Options) error {
	out := w
	var enc *zstd.Encoder
	if opts.Compress {
		var err error
		enc, err = zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd stream: %w", err)
		}
		out = enc
	}

	var encodeErr error
	switch opts.Format {
	case FormatYAML:
		ye := yaml.NewEncoder(out)
		ye.SetIndent(2)
		if err := ye.Encode(report); err != nil {
			encodeErr = fmt.Errorf("failed to encode YAML report: %w", err)
		} else {
			encodeErr = ye.Close()
		}
	case FormatJSON, "":
		je := json.NewEncoder(out)
		je.SetIndent("", "  ")
		if err := je.Encode(report); err != nil {
			encodeErr = fmt.Errorf("failed to encode JSON report: %w", err)
		}
	default:
		encodeErr = fmt.Errorf("unknown report format %q", opts.Format)
	}

	if enc != nil {
		if err := enc.Close(); err != nil && encodeErr == nil {
			encodeErr = fmt.Errorf("failed to flush zstd stream: %w", err)
		}
	}
	return encodeErr
}

// WriteFile writes the report to path, inferring format and compression
// from the extension: .json, .yaml/.yml, with an optional .zst suffix.
func (wr *Writer) WriteFile(path string, report *Report) error {
	opts, err := OptionsForPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := wr.Write(f, report, opts); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	wr.logger.Info("report written", map[string]interface{}{
		"path":     path,
		"reportId": report.ID,
		"format":   string(opts.Format),
	})
	return nil
}

// OptionsForPath derives write options from a file name.
func OptionsForPath(path string) (Options, error) {
	var opts Options

	name := path
	if strings.EqualFold(filepath.Ext(name), ".zst") {
		opts.Compress = true
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		opts.Format = FormatJSON
	case ".yaml", ".yml":
		opts.Format = FormatYAML
	default:
		return opts, fmt.Errorf("cannot infer report format from %q, use .json, .yaml, or a .zst variant", path)
	}
	return opts, nil
}

// ReadFile loads a report previously written with WriteFile. Used by
// tooling that post-processes archived reports.
func ReadFile(path string) (*Report, error) {
	opts, err := OptionsForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if opts.Compress {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var report Report
	switch opts.Format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&report); err != nil {
			return nil, fmt.Errorf("failed to decode YAML report: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&report); err != nil {
			return nil, fmt.Errorf("failed to decode JSON report: %w", err)
		}
	}
	return &report, nil
}

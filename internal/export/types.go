// Package export renders comparison and tracking results as JSON or
// YAML reports, optionally zstd-compressed for archiving.
package export

import (
	"time"

	"smartdiff/internal/tracker"
)

// Format selects the report encoding.
type Format string

const (
	// FormatJSON writes an indented JSON document
	FormatJSON Format = "json"
	// FormatYAML writes a YAML document
	FormatYAML Format = "yaml"
)

// Options controls how a report is written.
type Options struct {
	Format   Format
	Compress bool // wrap the output in a zstd stream
}

// Report is the envelope written around a tracking result. The ID lets
// archived reports be referenced unambiguously.
type Report struct {
	ID          string          `json:"id" yaml:"id"`
	Tool        string          `json:"tool" yaml:"tool"`
	Version     string          `json:"version" yaml:"version"`
	GeneratedAt time.Time       `json:"generatedAt" yaml:"generatedAt"`
	Source      string          `json:"source" yaml:"source"`
	Target      string          `json:"target" yaml:"target"`
	Result      *tracker.Result `json:"result" yaml:"result"`
}

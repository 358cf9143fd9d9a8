// Package output renders capture records for the CLI.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmylchreest/pageshot/pkg/capture"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatText  Format = "text"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONL, FormatYAML, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Status values of a Record.
const (
	StatusOK = "ok"
)

// Record is the outcome of capturing one URL. Failed captures carry the
// error class as Status.
type Record struct {
	URL         string             `json:"url" yaml:"url"`
	Status      string             `json:"status" yaml:"status"`
	ID          string             `json:"id,omitempty" yaml:"id,omitempty"`
	Depth       int                `json:"depth,omitempty" yaml:"depth,omitempty"`
	Attempts    int                `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Sessions    int                `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	DurationMs  int64              `json:"duration_ms" yaml:"duration_ms"`
	Bytes       int                `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Screenshots []capture.Artifact `json:"screenshots,omitempty" yaml:"screenshots,omitempty"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the capture succeeded.
func (r Record) OK() bool { return r.Status == StatusOK }

// FromResult builds a success record.
func FromResult(res *capture.Result) Record {
	rec := Record{
		URL:         res.URL,
		Status:      StatusOK,
		ID:          res.ID,
		Attempts:    res.Attempts,
		Sessions:    res.Sessions,
		DurationMs:  res.Duration.Milliseconds(),
		Screenshots: res.Artifacts,
	}
	for _, a := range res.Artifacts {
		rec.Bytes += a.Bytes
	}
	return rec
}

// FromError builds a failure record for url.
func FromError(url string, err error, elapsed time.Duration) Record {
	return Record{
		URL:        url,
		Status:     string(capture.ClassOf(err)),
		DurationMs: elapsed.Milliseconds(),
		Error:      err.Error(),
	}
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single record.
	Write(rec Record) error

	// WriteAll outputs multiple records.
	WriteAll(recs []Record) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatText:
		return NewTextWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

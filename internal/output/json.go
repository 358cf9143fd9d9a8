package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter buffers records and writes them as one JSON document on
// Flush: a bare object for a single record, an array otherwise.
type JSONWriter struct {
	w       *bufio.Writer
	pretty  bool
	indent  string
	records []Record
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

func (w *JSONWriter) Write(rec Record) error {
	w.records = append(w.records, rec)
	return nil
}

func (w *JSONWriter) WriteAll(recs []Record) error {
	w.records = append(w.records, recs...)
	return nil
}

// Flush writes and clears the buffered records. Nothing is written when
// the buffer is empty.
func (w *JSONWriter) Flush() error {
	if len(w.records) == 0 {
		return w.w.Flush()
	}

	var doc any = w.records
	if len(w.records) == 1 {
		doc = w.records[0]
	}

	enc := json.NewEncoder(w.w)
	enc.SetEscapeHTML(false)
	if w.pretty {
		enc.SetIndent("", w.indent)
	}
	if err := enc.Encode(doc); err != nil {
		return err
	}
	w.records = nil
	return w.w.Flush()
}

func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter streams one compact JSON object per line.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes rec immediately so progress is visible during long runs.
func (w *JSONLWriter) Write(rec Record) error {
	enc := json.NewEncoder(w.w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLWriter) WriteAll(recs []Record) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

func (w *JSONLWriter) Close() error {
	return w.Flush()
}

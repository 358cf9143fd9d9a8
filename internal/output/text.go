package output

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// TextWriter prints one human-readable line per record, followed by the
// saved file paths.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

func (w *TextWriter) Write(rec Record) error {
	elapsed := (time.Duration(rec.DurationMs) * time.Millisecond).String()
	if rec.OK() {
		fmt.Fprintf(w.w, "ok       %s  %d %s, %s, %d %s, %s\n",
			rec.URL,
			len(rec.Screenshots), plural(len(rec.Screenshots), "segment", "segments"),
			humanize.Bytes(uint64(rec.Bytes)),
			rec.Attempts, plural(rec.Attempts, "attempt", "attempts"),
			elapsed)
		for _, a := range rec.Screenshots {
			fmt.Fprintf(w.w, "         %s\n", a.Path)
		}
	} else {
		fmt.Fprintf(w.w, "%-8s %s  %s\n", rec.Status, rec.URL, rec.Error)
	}
	return w.w.Flush()
}

func (w *TextWriter) WriteAll(recs []Record) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (w *TextWriter) Flush() error {
	return w.w.Flush()
}

func (w *TextWriter) Close() error {
	return w.Flush()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

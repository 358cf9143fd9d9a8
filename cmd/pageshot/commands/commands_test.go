package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/pageshot/internal/crawler"
	"github.com/jmylchreest/pageshot/internal/output"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

type stubCapturer struct {
	calls []string
	fail  map[string]error
}

func (s *stubCapturer) Capture(_ context.Context, rawURL string) (*capture.Result, error) {
	s.calls = append(s.calls, rawURL)
	if err := s.fail[rawURL]; err != nil {
		return nil, err
	}
	return &capture.Result{
		ID:        "id",
		URL:       rawURL,
		Artifacts: []capture.Artifact{{Path: "assets/page_0.png", Bytes: 10}},
		Attempts:  1,
		Sessions:  1,
	}, nil
}

func TestCaptureURLs(t *testing.T) {
	timeout := capture.NewError(capture.KindTimeout, "navigate", "slow.test", errors.New("deadline"))
	c := &stubCapturer{fail: map[string]error{"slow.test": timeout}}
	buf := &bytes.Buffer{}
	w := output.NewJSONLWriter(buf)

	failed := captureURLs(context.Background(), c, []string{"a.test", "slow.test", "b.test"}, w)

	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if len(c.calls) != 3 {
		t.Errorf("calls = %v", c.calls)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	var rec output.Record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.URL != "slow.test" || rec.Status != "timeout" {
		t.Errorf("record = %+v", rec)
	}
}

func TestCaptureURLs_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &stubCapturer{}

	failed := captureURLs(ctx, c, []string{"a.test", "b.test"}, output.NewJSONLWriter(&bytes.Buffer{}))

	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
	if len(c.calls) != 0 {
		t.Errorf("nothing should be captured after cancel, got %v", c.calls)
	}
}

func TestCrawlRecord(t *testing.T) {
	ok := crawlRecord(crawler.Result{
		URL:     "https://example.com/a",
		Depth:   1,
		Capture: &capture.Result{URL: "https://example.com/a", Attempts: 2},
	})
	if !ok.OK() || ok.Depth != 1 || ok.Attempts != 2 {
		t.Errorf("success record = %+v", ok)
	}

	failed := crawlRecord(crawler.Result{
		URL:      "https://example.com/b",
		Depth:    2,
		Error:    errors.New("boom"),
		Duration: time.Second,
	})
	if failed.OK() || failed.Depth != 2 || failed.Error != "boom" || failed.DurationMs != 1000 {
		t.Errorf("failure record = %+v", failed)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "capture": false, "crawl": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"voxbridge/internal/capture"
	"voxbridge/internal/pipeline"
	"voxbridge/internal/transcribe"
)

func newStack(t *testing.T, recorder capture.Recorder) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	capt := capture.New(recorder, capture.Options{MaxSeconds: 30, MinBytes: 1000, TempDir: dir})
	tr := transcribe.New(transcribe.MockEngine{}, transcribe.Options{MinBytes: 1000})
	return New(Deps{Pipeline: pipeline.New(capt, tr)}), dir
}

func decodeResult(t *testing.T, body []byte) pipeline.Result {
	t.Helper()
	var res pipeline.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, body)
	}
	return res
}

func TestRecordWithoutRecorderInstalled(t *testing.T) {
	s, dir := newStack(t, capture.NewArecord(filepath.Join(t.TempDir(), "arecord"), nil))

	rec := get(t, s.Handler(), "/record/3")
	res := decodeResult(t, rec.Body.Bytes())
	if rec.Code != http.StatusOK || res.Success || !strings.Contains(res.Error, "not found") {
		t.Fatalf("unexpected response %d %+v", rec.Code, res)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no leftover temp files, found %d", len(entries))
	}
}

type sizedRecorder struct{ size int }

func (r sizedRecorder) Name() string { return "sized" }

func (r sizedRecorder) Record(_ context.Context, job capture.Job) error {
	return os.WriteFile(job.Path, make([]byte, r.size), 0o600)
}

func TestRecordUndersizedCapture(t *testing.T) {
	s, dir := newStack(t, sizedRecorder{size: 44})

	res := decodeResult(t, get(t, s.Handler(), "/record/1").Body.Bytes())
	if res.Success || res.Text != "" || !strings.Contains(res.Error, "too small") {
		t.Fatalf("unexpected result %+v", res)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no leftover temp files, found %d", len(entries))
	}
}

func TestRecordDurationRange(t *testing.T) {
	s, _ := newStack(t, sizedRecorder{size: 2048})

	for _, d := range []int{1, 15, 30} {
		res := decodeResult(t, get(t, s.Handler(), fmt.Sprintf("/record/%d", d)).Body.Bytes())
		if !res.Success {
			t.Fatalf("duration %d: %+v", d, res)
		}
	}
	for _, d := range []string{"0", "-2", "31"} {
		res := decodeResult(t, get(t, s.Handler(), "/record/"+d).Body.Bytes())
		if res.Success || !strings.HasPrefix(res.Error, "invalid duration") {
			t.Fatalf("duration %s: %+v", d, res)
		}
	}
}

func TestConcurrentRecordsUseDistinctFiles(t *testing.T) {
	s, dir := newStack(t, sizedRecorder{size: 2048})

	var wg sync.WaitGroup
	texts := make([]string, 4)
	for i := range texts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var res pipeline.Result
			if err := json.Unmarshal(get(t, s.Handler(), "/record/2").Body.Bytes(), &res); err != nil || !res.Success {
				t.Errorf("request %d failed: %+v", i, res)
			}
			texts[i] = res.Text
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, text := range texts {
		if seen[text] {
			t.Fatalf("two requests transcribed the same file: %q", text)
		}
		seen[text] = true
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected all recordings removed, found %d", len(entries))
	}
}

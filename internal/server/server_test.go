package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/rs/zerolog"

	"github.com/guiyumin/textube/internal/core/acquire"
	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/pipeline"
	"github.com/guiyumin/textube/internal/core/segment"
)

type gatedAcquirer struct {
	dir  string
	gate chan struct{}
}

func (a *gatedAcquirer) Acquire(ctx context.Context, runID, ref string) (*acquire.Asset, error) {
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	path := filepath.Join(a.dir, runID+".asset.wav")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return nil, err
	}
	return &acquire.Asset{Path: path, SampleRate: transcriber.SampleRate, Channels: 1, BitDepth: 16}, nil
}

func (a *gatedAcquirer) Release(asset *acquire.Asset) error {
	return os.Remove(asset.Path)
}

type twoChunks struct{}

func (twoChunks) Segment(ctx context.Context, asset *acquire.Asset, runID string) ([]segment.Chunk, error) {
	dir := filepath.Dir(asset.Path)
	chunks := make([]segment.Chunk, 2)
	for i := range chunks {
		path := segment.ChunkPath(dir, runID, i)
		if err := os.WriteFile(path, []byte(fmt.Sprintf("part %d", i)), 0644); err != nil {
			return nil, err
		}
		chunks[i] = segment.Chunk{Index: i, Path: path}
	}
	return chunks, nil
}

type echoEngine struct{}

func (echoEngine) Name() string    { return "echo" }
func (echoEngine) SampleRate() int { return transcriber.SampleRate }
func (echoEngine) Close() error    { return nil }

func (echoEngine) Transcribe(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

type echoProvider struct{}

func (echoProvider) Engine(sel transcriber.Selector) (transcriber.Engine, error) {
	return echoEngine{}, nil
}

func newTestServer(t *testing.T, apiKey string, gate chan struct{}) *Server {
	t.Helper()
	dir := t.TempDir()
	orch := pipeline.New(&gatedAcquirer{dir: dir, gate: gate}, twoChunks{}, echoProvider{}, zerolog.Nop())
	opts := Options{APIKey: apiKey, DefaultEngine: "batch", DefaultTier: "small"}
	return NewServer(opts, orch, transcriber.NewModelManager(t.TempDir()), zerolog.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, header map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, resp
}

func jobID(t *testing.T, resp Response) string {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %#v", resp.Data)
	}
	job, ok := data["job"].(map[string]interface{})
	if !ok {
		t.Fatalf("job = %#v", data["job"])
	}
	return job["id"].(string)
}

func readEvents(t *testing.T, baseURL, id string, header map[string]string) []sse.Event {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/jobs/"+id+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d", resp.StatusCode)
	}
	events, err := sse.Decode(resp.Body)
	if err != nil {
		t.Fatalf("sse.Decode() error = %v", err)
	}
	return events
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "secret", nil)
	rec, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK || resp.Code != 200 {
		t.Fatalf("health = %d %+v", rec.Code, resp)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, "secret", nil)

	rec, _ := doJSON(t, s.Handler(), http.MethodGet, "/api/jobs", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/jobs", nil, map[string]string{"X-API-Key": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}
	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/jobs", nil, map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("valid key status = %d, want 200", rec.Code)
	}
}

func TestModels(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec, resp := doJSON(t, s.Handler(), http.MethodGet, "/api/models", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	models := resp.Data.(map[string]interface{})["models"].([]interface{})
	if len(models) != len(transcriber.Models) {
		t.Errorf("models = %d, want %d", len(models), len(transcriber.Models))
	}
}

func TestStartJobValidation(t *testing.T) {
	s := newTestServer(t, "", nil)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing source", JobRequest{}, http.StatusBadRequest},
		{"no scheme", JobRequest{Source: "podcast.mp3"}, http.StatusBadRequest},
		{"bad tier", JobRequest{Source: "https://example.com/a.mp3", Tier: "tiny"}, http.StatusBadRequest},
		{"streaming tier", JobRequest{Source: "https://example.com/a.mp3", Engine: "streaming", Tier: "base"}, http.StatusBadRequest},
		{"large unconfirmed", JobRequest{Source: "https://example.com/a.mp3", Tier: "large"}, http.StatusPreconditionRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/jobs", tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, resp.Message)
			}
		})
	}

	if len(s.jobs.List()) != 0 {
		t.Error("rejected requests should not create jobs")
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t, "", nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	rec, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/jobs",
		JobRequest{Source: "https://example.com/a.mp3", Tier: "large", ConfirmLarge: true}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", rec.Code, resp.Message)
	}
	id := jobID(t, resp)

	events := readEvents(t, ts.URL, id, nil)
	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if last.Event != "done" {
		t.Errorf("last event = %q, want done", last.Event)
	}
	for i, e := range events {
		if e.Id != fmt.Sprint(i+1) {
			t.Errorf("event %d id = %q", i, e.Id)
		}
	}

	var result pipeline.Event
	for _, e := range events {
		if e.Event == "result" {
			if err := json.Unmarshal([]byte(e.Data.(string)), &result); err != nil {
				t.Fatalf("decode result: %v", err)
			}
		}
	}
	if result.Text != "part 0\npart 1\n" {
		t.Errorf("result text = %q", result.Text)
	}

	_, resp = doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/"+id, nil, nil)
	job := resp.Data.(map[string]interface{})
	if job["status"] != string(JobStatusCompleted) || job["progress"].(float64) != 100 {
		t.Errorf("job = %v", job)
	}

	// replay skips events already seen
	replay := readEvents(t, ts.URL, id, map[string]string{"Last-Event-ID": fmt.Sprint(len(events) - 1)})
	if len(replay) != 1 || replay[0].Event != "done" {
		t.Errorf("replay = %v", replay)
	}

	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/current", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("current after finish = %d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, s.Handler(), http.MethodDelete, "/api/jobs/"+id, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete finished = %d, want 200", rec.Code)
	}
	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/"+id, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get removed = %d, want 404", rec.Code)
	}
}

func TestBusyAndCancel(t *testing.T) {
	gate := make(chan struct{})
	s := newTestServer(t, "", gate)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	rec, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/jobs", JobRequest{Source: "https://example.com/a.mp3"}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first status = %d (%s)", rec.Code, resp.Message)
	}
	id := jobID(t, resp)

	rec, resp = doJSON(t, s.Handler(), http.MethodPost, "/api/jobs", JobRequest{Source: "https://example.com/b.mp3"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second status = %d, want 409", rec.Code)
	}
	if !strings.Contains(resp.Message, "Busy") {
		t.Errorf("message = %q", resp.Message)
	}

	rec, resp = doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/current", nil, nil)
	if rec.Code != http.StatusOK || resp.Data.(map[string]interface{})["id"] != id {
		t.Errorf("current = %d %v", rec.Code, resp.Data)
	}

	rec, _ = doJSON(t, s.Handler(), http.MethodDelete, "/api/jobs/"+id, nil, nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("cancel status = %d, want 202", rec.Code)
	}

	events := readEvents(t, ts.URL, id, nil)
	last := events[len(events)-1]
	var done pipeline.Event
	if err := json.Unmarshal([]byte(last.Data.(string)), &done); err != nil {
		t.Fatal(err)
	}
	if done.Outcome == nil || done.Outcome.Status != pipeline.StatusCancelled {
		t.Errorf("done = %+v", done)
	}
	for _, e := range events {
		if e.Event == "error" {
			t.Errorf("cancelled job emitted error event: %v", e.Data)
		}
	}

	_, resp = doJSON(t, s.Handler(), http.MethodGet, "/api/jobs/"+id, nil, nil)
	if status := resp.Data.(map[string]interface{})["status"]; status != string(JobStatusCancelled) {
		t.Errorf("status = %v", status)
	}
}

func TestUnknownJob(t *testing.T) {
	s := newTestServer(t, "", nil)
	for _, path := range []string{"/api/jobs/nope", "/api/jobs/nope/events"} {
		rec, _ := doJSON(t, s.Handler(), http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

// stuckAcquirer ignores cancellation until released.
type stuckAcquirer struct {
	release chan struct{}
}

func (a *stuckAcquirer) Acquire(ctx context.Context, runID, ref string) (*acquire.Asset, error) {
	<-a.release
	return nil, ctx.Err()
}

func (a *stuckAcquirer) Release(asset *acquire.Asset) error { return nil }

func TestStopLogsUndrainedJob(t *testing.T) {
	acq := &stuckAcquirer{release: make(chan struct{})}
	t.Cleanup(func() { close(acq.release) })

	var logs bytes.Buffer
	orch := pipeline.New(acq, twoChunks{}, echoProvider{}, zerolog.Nop())
	s := NewServer(Options{}, orch, transcriber.NewModelManager(t.TempDir()), zerolog.New(&logs))

	rec, resp := doJSON(t, s.Handler(), http.MethodPost, "/api/jobs", JobRequest{Source: "https://example.com/a.mp3"}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", rec.Code, resp.Message)
	}
	id := jobID(t, resp)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	out := logs.String()
	if !strings.Contains(out, "job did not stop before shutdown deadline") {
		t.Errorf("missing shutdown warning in %q", out)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, context.DeadlineExceeded.Error()) {
		t.Errorf("warning lacks job id or cause: %q", out)
	}
}

package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/ports"
)

const testKey = "sk-test-123456"

type fakeService struct {
	t           *testing.T
	statuses    []string
	errorText   string
	polls       atomic.Int32
	submitted   map[string]any
	uploadBody  string
	uploadCode  int
	uploadReply string
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != testKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b, _ := io.ReadAll(r.Body)
		f.uploadBody = string(b)
		if f.uploadCode != 0 {
			w.WriteHeader(f.uploadCode)
			_, _ = io.WriteString(w, f.uploadReply)
			return
		}
		_, _ = io.WriteString(w, `{"upload_url":"https://cdn.example/audio"}`)
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&f.submitted); err != nil {
			f.t.Errorf("decode submit: %v", err)
		}
		_, _ = io.WriteString(w, `{"id":"tx1","status":"queued"}`)
	})
	mux.HandleFunc("/v2/transcript/tx1", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.polls.Add(1))
		status := f.statuses[min(n, len(f.statuses))-1]
		switch status {
		case "completed":
			_, _ = io.WriteString(w, `{
				"id":"tx1","status":"completed","audio_duration":120,
				"words":[{"start":0,"end":400,"text":"hello","confidence":0.9}],
				"sentiment_analysis_results":[{"start":10000,"end":12000,"sentiment":"POSITIVE","confidence":0.8,"text":"great"}],
				"chapters":[{"start":0,"end":60000,"headline":"Intro","gist":"intro","summary":"An intro"}]
			}`)
		case "error":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tx1", "status": "error", "error": f.errorText})
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tx1", "status": status})
		}
	})
	return mux
}

func writeWav(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(p, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return p
}

func newTestAdapter(srv *httptest.Server, maxPolls int) *Adapter {
	return New(Options{
		APIKey:       testKey,
		BaseURL:      srv.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
		Client:       srv.Client(),
		Logger:       zerolog.Nop(),
	})
}

func TestTranscribe_Completed(t *testing.T) {
	fs := &fakeService{t: t, statuses: []string{"queued", "processing", "completed"}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	tr, err := newTestAdapter(srv, 10).Transcribe(context.Background(), writeWav(t), "")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if fs.uploadBody != "RIFFdata" {
		t.Fatalf("unexpected upload body %q", fs.uploadBody)
	}
	if fs.submitted["sentiment_analysis"] != true || fs.submitted["auto_chapters"] != true {
		t.Fatalf("expected sentiment and chapters enabled, got %v", fs.submitted)
	}
	if fs.submitted["audio_url"] != "https://cdn.example/audio" {
		t.Fatalf("unexpected audio_url %v", fs.submitted["audio_url"])
	}
	if got := fs.polls.Load(); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
	if len(tr.Words) != 1 || len(tr.SentimentAnalysisResults) != 1 || len(tr.Chapters) != 1 {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	if c := tr.SentimentAnalysisResults[0].Confidence; c == nil || *c != 0.8 {
		t.Fatalf("unexpected sentiment confidence %v", c)
	}
	if tr.Chapters[0].SummaryQualityScore != nil {
		t.Fatalf("absent quality score must stay nil")
	}
}

func TestTranscribe_ServiceErrorIsRejected(t *testing.T) {
	fs := &fakeService{t: t, statuses: []string{"processing", "error"}, errorText: "audio too short"}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	_, err := newTestAdapter(srv, 10).Transcribe(context.Background(), writeWav(t), "")
	if !errors.Is(err, ports.ErrAnnotationRejected) || !errors.Is(err, ports.ErrAnnotationService) {
		t.Fatalf("expected rejected annotation error, got %v", err)
	}
	if errors.Is(err, ports.ErrAnnotationTimeout) {
		t.Fatalf("rejection must not look like a timeout")
	}
	if !strings.Contains(err.Error(), "audio too short") {
		t.Fatalf("expected service message, got %v", err)
	}
}

func TestTranscribe_PollBoundIsTimeout(t *testing.T) {
	fs := &fakeService{t: t, statuses: []string{"processing"}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	_, err := newTestAdapter(srv, 3).Transcribe(context.Background(), writeWav(t), "")
	if !errors.Is(err, ports.ErrAnnotationTimeout) || !errors.Is(err, ports.ErrAnnotationService) {
		t.Fatalf("expected annotation timeout, got %v", err)
	}
	if got := fs.polls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 polls, got %d", got)
	}
}

func TestTranscribe_CancelStopsPolling(t *testing.T) {
	fs := &fakeService{t: t, statuses: []string{"processing"}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := New(Options{APIKey: testKey, BaseURL: srv.URL, PollInterval: time.Hour, MaxPolls: 10, Client: srv.Client(), Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for fs.polls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	_, err := a.Transcribe(ctx, writeWav(t), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if got := fs.polls.Load(); got != 1 {
		t.Fatalf("expected polling to stop after cancel, got %d polls", got)
	}
}

func TestTranscribe_UploadFailureRedactsKey(t *testing.T) {
	fs := &fakeService{t: t, uploadCode: http.StatusBadRequest, uploadReply: "bad request for api_key=" + testKey}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	_, err := newTestAdapter(srv, 3).Transcribe(context.Background(), writeWav(t), "")
	if !errors.Is(err, ports.ErrAnnotationService) {
		t.Fatalf("expected annotation service error, got %v", err)
	}
	if strings.Contains(err.Error(), testKey) {
		t.Fatalf("api key leaked into error: %v", err)
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestRedactSecrets(t *testing.T) {
	apiKey := "sk-secret"
	in := "Authorization: Bearer sk-secret\napi_key=sk-secret"
	got := redactSecrets(in, apiKey)

	if strings.Contains(got, apiKey) {
		t.Fatalf("expected API key to be redacted, got: %q", got)
	}
	if !strings.Contains(got, "Authorization: [REDACTED]") {
		t.Fatalf("expected authorization header to be redacted, got: %q", got)
	}
	if !strings.Contains(got, "api_key=[REDACTED]") {
		t.Fatalf("expected api_key field to be redacted, got: %q", got)
	}
}

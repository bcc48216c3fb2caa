package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/domain/selection"
	"github.com/forPelevin/podclips/internal/pipeline"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultMatchesSelector(t *testing.T) {
	cfg := Default()
	if got, want := cfg.SelectionParams(), selection.DefaultParams(); got != want {
		t.Fatalf("default params %+v, want %+v", got, want)
	}
	if cfg.Cache.JanitorSchedule != "@every 30m" {
		t.Fatalf("unexpected janitor schedule %q", cfg.Cache.JanitorSchedule)
	}
	if cfg.TTL() != time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.TTL())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "podclips.toml")
	body := `
[selection]
max_clips = 3
confidence_floor = 0.8

[render]
workers = 2
burn_subtitles = false

[transcription]
provider = "WhisperCPP"

[transcription.whisper]
model = "/models/base.bin"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PODCLIPS_MAX_CLIPS", "4")
	t.Setenv("PORT", "8088")

	cfg, resolved, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved %q, want %q", resolved, path)
	}
	if cfg.Selection.MaxClips != 4 {
		t.Fatalf("env must override file, got %d", cfg.Selection.MaxClips)
	}
	if cfg.Selection.ConfidenceFloor != 0.8 || cfg.Render.Workers != 2 || cfg.Render.BurnSubtitles {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Selection.ClipSeconds != selection.DefaultClipDurationSec {
		t.Fatalf("unset values must keep defaults, got %v", cfg.Selection.ClipSeconds)
	}
	if cfg.Transcription.Provider != pipeline.TranscriberWhisper {
		t.Fatalf("provider not normalized: %q", cfg.Transcription.Provider)
	}
	if cfg.Server.Addr != ":8088" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[selection]\nmax_clip = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"ASSEMBLYAI_API_KEY":        "secret",
		"ASSEMBLYAI_ALLOWED_HOSTS":  " api.assemblyai.com , proxy.internal ,",
		"PODCLIPS_CLIP_SECONDS":     "45",
		"PODCLIPS_CONFIDENCE_FLOOR": "0.75",
		"PODCLIPS_FAST_MODE":        "true",
		"PODCLIPS_LOG_FORMAT":       "json",
		"PODCLIPS_REDIS_ADDR":       "",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Transcription.AssemblyAI.APIKey != "secret" {
		t.Fatalf("api key not applied")
	}
	hosts := cfg.Transcription.AssemblyAI.AllowedHosts
	if len(hosts) != 2 || hosts[1] != "proxy.internal" {
		t.Fatalf("unexpected hosts %v", hosts)
	}
	if cfg.Selection.ClipSeconds != 45 || cfg.Selection.ConfidenceFloor != 0.75 || !cfg.Tools.FastMode {
		t.Fatalf("numeric env not applied: %+v", cfg.Selection)
	}
	if cfg.Logging.Format != "json" || cfg.Server.RedisAddr != "" {
		t.Fatalf("unexpected server/logging %+v %+v", cfg.Server, cfg.Logging)
	}
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		"PODCLIPS_MAX_CLIPS":       "many",
		"PODCLIPS_FAST_MODE":       "perhaps",
		"PODCLIPS_LOG_LEVEL":       "debug",
		"PODCLIPS_STATUS_DB":       "/tmp/x.db",
		"PODCLIPS_LEAD_IN_SECONDS": "1.5",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"PODCLIPS_MAX_CLIPS", "PODCLIPS_FAST_MODE"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not name %s", err, key)
		}
	}
	if cfg.Selection.MaxClips != selection.DefaultMaxClips {
		t.Fatalf("bad value must not overwrite, got %d", cfg.Selection.MaxClips)
	}
	if cfg.Logging.Level != "debug" || cfg.Server.StatusDB != "/tmp/x.db" || cfg.Selection.LeadInSeconds != 1.5 {
		t.Fatalf("valid values must still apply: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "assemblyai without key", mutate: func(c *Config) {}, wantErr: "ASSEMBLYAI_API_KEY"},
		{name: "assemblyai ok", mutate: func(c *Config) { c.Transcription.AssemblyAI.APIKey = "k" }},
		{name: "plain http base", mutate: func(c *Config) {
			c.Transcription.AssemblyAI.APIKey = "k"
			c.Transcription.AssemblyAI.BaseURL = "http://api.assemblyai.com"
		}, wantErr: "https"},
		{name: "none", mutate: func(c *Config) { c.Transcription.Provider = pipeline.TranscriberNone }},
		{name: "unknown provider", mutate: func(c *Config) { c.Transcription.Provider = "x" }, wantErr: "provider"},
		{name: "floor", mutate: func(c *Config) {
			c.Transcription.Provider = pipeline.TranscriberNone
			c.Selection.ConfidenceFloor = 2
		}, wantErr: "confidence_floor"},
		{name: "workers", mutate: func(c *Config) {
			c.Transcription.Provider = pipeline.TranscriberNone
			c.Render.Workers = 0
		}, wantErr: "render.workers"},
		{name: "log format", mutate: func(c *Config) {
			c.Transcription.Provider = pipeline.TranscriberNone
			c.Logging.Format = "xml"
		}, wantErr: "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPipelineConfig(t *testing.T) {
	cfg := Default()
	cfg.Transcription.AssemblyAI.PollIntervalSeconds = 0.5
	cfg.Cache.TTLHours = 2
	pc := cfg.Pipeline("https://youtu.be/dQw4w9WgXcQ", zerolog.Nop())
	if pc.AssemblyAIPollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval %v", pc.AssemblyAIPollInterval)
	}
	if pc.DownloadReuse != 2*time.Hour {
		t.Fatalf("unexpected reuse %v", pc.DownloadReuse)
	}
	if pc.Selection != cfg.SelectionParams() || pc.MaxVideoDuration != selection.DefaultMaxVideoDurationSec {
		t.Fatalf("selection not carried: %+v", pc.Selection)
	}
	if pc.YtDlpPath != "yt-dlp" || pc.RenderWorkers != 3 || !pc.BurnSubtitles {
		t.Fatalf("unexpected pipeline config %+v", pc)
	}
}

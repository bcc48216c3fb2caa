package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/podclips/internal/ports"
	"github.com/forPelevin/podclips/internal/types"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxPolls     = 400

	requestTimeout = 5 * time.Minute
)

type Options struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	Client       *http.Client
	Logger       zerolog.Logger
}

// Adapter transcribes audio with sentiment analysis and auto chapters.
type Adapter struct {
	key      string
	baseURL  string
	interval time.Duration
	maxPolls int
	client   *http.Client
	logger   zerolog.Logger
}

func New(opts Options) *Adapter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: requestTimeout}
	}
	return &Adapter{
		key:      opts.APIKey,
		baseURL:  normalizeBaseURL(opts.BaseURL),
		interval: opts.PollInterval,
		maxPolls: opts.MaxPolls,
		client:   opts.Client,
		logger:   opts.Logger.With().Str("component", "assemblyai").Logger(),
	}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, _ string) (types.Transcript, error) {
	uploadURL, err := a.upload(ctx, wavPath)
	if err != nil {
		return types.Transcript{}, err
	}
	id, err := a.submit(ctx, uploadURL)
	if err != nil {
		return types.Transcript{}, err
	}
	a.logger.Info().Str("transcript_id", id).Msg("transcription submitted")
	return a.poll(ctx, id)
}

func (a *Adapter) upload(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", ports.Wrap(ports.ErrAnnotationService, "assemblyai upload", "open audio", err)
	}
	defer f.Close()

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", f, &out); err != nil {
		return "", ports.Wrap(ports.ErrAnnotationService, "assemblyai upload", "", err)
	}
	if out.UploadURL == "" {
		return "", ports.Wrap(ports.ErrAnnotationService, "assemblyai upload", "empty upload_url", nil)
	}
	return out.UploadURL, nil
}

func (a *Adapter) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"audio_url":          audioURL,
		"sentiment_analysis": true,
		"auto_chapters":      true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := a.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", ports.Wrap(ports.ErrAnnotationService, "assemblyai submit", "", err)
	}
	if out.ID == "" {
		return "", ports.Wrap(ports.ErrAnnotationService, "assemblyai submit", "empty transcript id", nil)
	}
	return out.ID, nil
}

// poll checks the job every interval, up to maxPolls times.
func (a *Adapter) poll(ctx context.Context, id string) (types.Transcript, error) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= a.maxPolls; attempt++ {
		var tr types.Transcript
		if err := a.do(ctx, http.MethodGet, "/v2/transcript/"+id, "", nil, &tr); err != nil {
			return types.Transcript{}, ports.Wrap(ports.ErrAnnotationService, "assemblyai poll", id, err)
		}
		switch strings.ToLower(tr.Status) {
		case "completed":
			return tr, nil
		case "error":
			msg := strings.TrimSpace(tr.Error)
			if msg == "" {
				msg = "transcription failed"
			}
			return types.Transcript{}, ports.Wrap(ports.ErrAnnotationRejected, "assemblyai poll", truncate(redactSecrets(msg, a.key), 400), nil)
		}
		a.logger.Debug().Str("transcript_id", id).Str("status", tr.Status).Int("attempt", attempt).Msg("transcription pending")
		if attempt == a.maxPolls {
			break
		}
		select {
		case <-ctx.Done():
			return types.Transcript{}, ports.Wrap(ports.ErrAnnotationService, "assemblyai poll", "canceled", ctx.Err())
		case <-ticker.C:
		}
	}
	return types.Transcript{}, ports.Wrap(ports.ErrAnnotationTimeout, "assemblyai poll",
		fmt.Sprintf("%s not completed after %d polls", id, a.maxPolls), nil)
}

func (a *Adapter) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", a.key)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s %s: %s", method, path, redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return fmt.Errorf("status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

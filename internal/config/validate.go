package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/podclips/internal/pipeline"
	"github.com/forPelevin/podclips/internal/ports/adapters/assemblyai"
)

// Validate checks values that do not depend on a particular input.
func (c Config) Validate() error {
	var errs []error
	s := c.Selection
	if s.MaxClips <= 0 {
		errs = append(errs, errors.New("selection.max_clips must be positive"))
	}
	if s.ClipSeconds <= 0 {
		errs = append(errs, errors.New("selection.clip_seconds must be positive"))
	}
	if s.ConfidenceFloor < 0 || s.ConfidenceFloor > 1 {
		errs = append(errs, errors.New("selection.confidence_floor must be within [0, 1]"))
	}
	if s.LeadInSeconds < 0 {
		errs = append(errs, errors.New("selection.lead_in_seconds must not be negative"))
	}
	if s.MaxVideoSeconds <= 0 {
		errs = append(errs, errors.New("selection.max_video_seconds must be positive"))
	}
	if c.Render.Workers <= 0 {
		errs = append(errs, errors.New("render.workers must be positive"))
	}
	if c.Cache.TTLHours < 0 {
		errs = append(errs, errors.New("cache.ttl_hours must not be negative"))
	}
	if c.Server.QueueConcurrency <= 0 {
		errs = append(errs, errors.New("server.queue_concurrency must be positive"))
	}

	switch c.Transcription.Provider {
	case pipeline.TranscriberAssemblyAI:
		a := c.Transcription.AssemblyAI
		if a.APIKey == "" {
			errs = append(errs, errors.New("ASSEMBLYAI_API_KEY is required for the assemblyai provider (set it in .env)"))
		}
		if err := assemblyai.ValidateBaseURL(a.BaseURL, a.AllowedHosts); err != nil {
			errs = append(errs, err)
		}
		if a.PollIntervalSeconds <= 0 || a.MaxPolls <= 0 {
			errs = append(errs, errors.New("transcription.assemblyai poll settings must be positive"))
		}
	case pipeline.TranscriberWhisper:
		if strings.TrimSpace(c.Transcription.Whisper.Model) == "" {
			errs = append(errs, errors.New("transcription.whisper.model is required"))
		}
	case pipeline.TranscriberNone:
	default:
		errs = append(errs, fmt.Errorf("unknown transcription.provider %q", c.Transcription.Provider))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

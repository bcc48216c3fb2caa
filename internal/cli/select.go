package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forPelevin/podclips/internal/domain/selection"
	"github.com/forPelevin/podclips/internal/types"
)

func newSelectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <transcript.json>",
		Short: "Print the clip windows chosen for a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return selectSegments(cmd, a, args[0])
		},
	}
	cmd.Flags().Float64("duration", 0, "Media duration in seconds (default: audio_duration from the transcript)")
	cmd.Flags().Bool("json", false, "Print segments as JSON")
	cmd.Flags().Int("clips", 0, "Number of clips")
	cmd.Flags().Float64("confidence-floor", 0, "Minimum sentiment confidence")
	return cmd
}

func selectSegments(cmd *cobra.Command, a *app, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tr types.Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		return fmt.Errorf("parse transcript %s: %w", path, err)
	}

	cfg := a.cfg
	applyRunFlags(cmd, &cfg)
	duration, _ := cmd.Flags().GetFloat64("duration")
	if duration <= 0 {
		duration = tr.AudioDuration
	}
	if duration <= 0 {
		return fmt.Errorf("transcript has no audio_duration; pass --duration")
	}
	duration = selection.EffectiveDuration(duration, nil, cfg.Selection.MaxVideoSeconds)

	segs := selection.Select(selection.SpansFromTranscript(tr), duration, cfg.SelectionParams())
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(segs)
	}
	fmt.Fprintln(out, segmentsTable(segs))
	return nil
}

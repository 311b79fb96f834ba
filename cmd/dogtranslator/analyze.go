package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dogtranslator/internal/app/services"
	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/session"
	"dogtranslator/internal/transport/http/api"
)

func (c *cli) analyzeCmd() *cobra.Command {
	var (
		tone      string
		save      bool
		speak     bool
		skipLimit bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Interpret a dog photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var opts []services.AnalyzeOption
			if skipLimit {
				opts = append(opts, services.SkipDailyLimit())
			}
			req := model.AnalysisRequest{ImageURI: photoURI(args[0]), Tone: model.Tone(tone), Save: save}
			res, err := c.app.Analysis.Analyze(ctx, req, opts...)

			var queued *api.QueuedError
			switch {
			case errors.As(err, &queued):
				fmt.Fprintf(out, "No connection. Saved for later as %s; run `dogtranslator queue replay` when online.\n", queued.Item.ID)
				return nil
			case errors.Is(err, session.ErrDailyLimit):
				return fmt.Errorf("daily limit of %d free scans reached; pass --skip-limit to continue", c.app.Config.Scans.DailyFreeLimit)
			case err != nil:
				return friendly(err)
			}

			if res.Status == model.StatusError {
				rerr := services.ResultError(res)
				return &userError{msg: rerr.Message, cause: rerr}
			}
			if res.NoDogDetected() {
				fmt.Fprintln(out, "No dog detected. Try a clearer photo of your dog.")
				return nil
			}
			fmt.Fprintln(out, res.Explanation)
			fmt.Fprintf(out, "confidence: %.0f%%\n", res.Confidence*100)
			if res.Breed != "" {
				fmt.Fprintf(out, "breed: %s\n", res.Breed)
			}
			if res.ShareID != "" {
				fmt.Fprintf(out, "share id: %s\n", res.ShareID)
			}

			if speak && !c.app.Session.AutoSpeak() {
				t, _ := model.ParseTone(tone)
				return c.speakResult(cmd, res, t)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&tone, "tone", "t", string(model.DefaultTone), "voice of the interpretation: playful, calm or trainer")
	cmd.Flags().BoolVarP(&save, "save", "s", false, "keep the result in history")
	cmd.Flags().BoolVar(&speak, "speak", false, "read the interpretation aloud")
	cmd.Flags().BoolVar(&skipLimit, "skip-limit", false, "ignore the daily free scan limit")
	return cmd
}

func (c *cli) speakResult(cmd *cobra.Command, res model.AnalysisResult, tone model.Tone) error {
	if c.app.Speech == nil {
		return errors.New("speech is disabled in the configuration")
	}
	sp, err := c.app.Speech.SpeakResult(cmd.Context(), res, tone)
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	if sp != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "audio: %s (%s)\n", sp.Path, sp.Duration.Round(100*time.Millisecond))
	}
	return nil
}

func (c *cli) explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <behavior>",
		Short: "Look up what a dog behaviour means",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Client.Explain(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return friendly(err)
			}
			out := cmd.OutOrStdout()
			if res.Explanation != "" {
				fmt.Fprintln(out, res.Explanation)
			}
			for i, r := range res.Results {
				fmt.Fprintf(out, "%d. %s (%s)\n", i+1, r.Title, r.Source)
				if r.Snippet != "" {
					fmt.Fprintf(out, "   %s\n", r.Snippet)
				}
				if r.URL != "" {
					fmt.Fprintf(out, "   %s\n", r.URL)
				}
			}
			if res.Explanation == "" && len(res.Results) == 0 {
				fmt.Fprintln(out, "No insights found.")
			}
			return nil
		},
	}
}

func (c *cli) speakCmd() *cobra.Command {
	var tone string
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesise text in the voice of a tone",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseTone(tone)
			if err != nil {
				return err
			}
			sp, err := c.app.Speaker.Speak(cmd.Context(), strings.Join(args, " "), t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "audio: %s (%s)\n", sp.Path, sp.Duration.Round(100*time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tone, "tone", "t", string(model.DefaultTone), "playful, calm or trainer")
	return cmd
}

// photoURI accepts a plain path or a file:// URI.
func photoURI(arg string) string {
	if strings.Contains(arg, "://") {
		return arg
	}
	if abs, err := filepath.Abs(arg); err == nil {
		arg = abs
	}
	return "file://" + arg
}

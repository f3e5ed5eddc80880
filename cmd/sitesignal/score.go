package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"sitesignal/packages/config"
	"sitesignal/packages/crawler"
	"sitesignal/packages/domain"
	"sitesignal/packages/outreach"
	"sitesignal/packages/scorer"

	"github.com/spf13/cobra"
)

type scoreFlags struct {
	strategy  string
	pretty    bool
	prompt    bool
	name      string
	failBelow int
	timeout   time.Duration
	verbose   bool
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score <url>",
		Short: "Fetch a website and print its quality score as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			level := "warn"
			if f.verbose {
				level = "debug"
			}
			setupLogger(level)

			if !cmd.Flags().Changed("strategy") {
				f.strategy = cfg.ScoringStrategy
			}
			if !cmd.Flags().Changed("timeout") {
				f.timeout = cfg.FetchTimeout
			}
			fetcher := crawler.New(f.timeout, cfg.UserAgent, cfg.MaxBodyBytes)
			return runScore(cmd.Context(), fetcher, args[0], cfg.PhoneRegion, f, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.strategy, "strategy", "heuristic", "Scoring strategy: heuristic or dom")
	flags.BoolVar(&f.pretty, "pretty", false, "Indent the JSON output")
	flags.BoolVar(&f.prompt, "prompt", false, "Print the outreach prompt instead of the score")
	flags.StringVar(&f.name, "name", "", "Business name used in the outreach prompt")
	flags.IntVar(&f.failBelow, "fail-below", 0, "Exit with code 2 if the overall score is below this value")
	flags.DurationVar(&f.timeout, "timeout", 15*time.Second, "Fetch timeout")
	flags.BoolVar(&f.verbose, "verbose", false, "Log scoring steps to stderr")

	return cmd
}

func runScore(ctx context.Context, fetcher scorer.Fetcher, url, phoneRegion string, f *scoreFlags, w io.Writer) error {
	sc := scorer.New(fetcher,
		scorer.WithStrategy(scorer.ParseStrategy(f.strategy)),
		scorer.WithPhoneRegion(phoneRegion),
	)
	score := sc.Score(ctx, url).Score

	if f.prompt {
		business := domain.Business{Name: f.name, Website: score.URL}
		if _, err := fmt.Fprintln(w, outreach.BuildPrompt(business, score)); err != nil {
			return fmt.Errorf("write prompt: %w", err)
		}
	} else if err := writeScore(w, score, f.pretty); err != nil {
		return err
	}

	if score.HasCritical(scorer.AnalysisFailed) {
		return exitError(3, "could not analyze %s", score.URL)
	}
	if f.failBelow > 0 && score.Overall < f.failBelow {
		return exitError(2, "overall score %d is below %d", score.Overall, f.failBelow)
	}
	return nil
}

func writeScore(w io.Writer, score domain.WebsiteScore, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(score); err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cora/internal/constancy"
	"github.com/roach88/cora/internal/guardian"
	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/verify"
)

// SubmitOptions holds flags for the offer and need commands.
type SubmitOptions struct {
	*RootOptions
	Dwell int // seconds spent writing; -1 reads the open session
}

// NewOfferCommand creates the offer command.
func NewOfferCommand(rootOpts *RootOptions) *cobra.Command {
	return newSubmitCommand(rootOpts, ritual.KindOffer)
}

// NewNeedCommand creates the need command.
func NewNeedCommand(rootOpts *RootOptions) *cobra.Command {
	return newSubmitCommand(rootOpts, ritual.KindNeed)
}

func newSubmitCommand(rootOpts *RootOptions, kind ritual.Kind) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	use, short, example := "offer <text>", "Offer a gesture of help", `  cora offer --visitor $V --dwell 45 "puedo enseñar guitarra a mi vecino"`
	if kind == ritual.KindNeed {
		use, short, example = "need <text>", "Ask for what you need", `  cora need --visitor $V --dwell 45 "necesito tiempo y apoyo para mi familia"`
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The text is scored for authenticity. It is accepted only with a score of at
least 0.7, at least 30 seconds of dwell time, a plausible writing pattern,
and a text never submitted before. A rejection re-prompts without a reason.

With --dwell -1 the dwell time is read from the open session
(see "cora session start").

Example:
` + example,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, kind, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Dwell, "dwell", -1, "seconds spent writing (-1 uses the open session)")

	return cmd
}

func runSubmit(opts *SubmitOptions, kind ritual.Kind, text string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	visitor, err := e.visitor()
	if err != nil {
		return err
	}

	tracker := e.constancy(visitor)
	dwell := opts.Dwell
	if dwell < 0 {
		dwell, err = tracker.Seconds(ctx)
		if errors.Is(err, constancy.ErrNoSession) {
			return NewExitError(ExitCommandError, "no dwell time: pass --dwell or open a session with `cora session start`")
		}
		if err != nil {
			return commandError("failed to read session", err)
		}
	}
	if _, err := tracker.RecordWriting(ctx, text); err != nil && !errors.Is(err, constancy.ErrNoSession) {
		return commandError("failed to record writing", err)
	}

	g := e.guardian(visitor)
	var resp guardian.Response
	if kind == ritual.KindOffer {
		resp, err = g.SubmitOffer(ctx, text, dwell)
	} else {
		resp, err = g.SubmitNeed(ctx, text, dwell)
	}
	if err != nil {
		return commandError(fmt.Sprintf("failed to submit %s", kind), err)
	}

	return newFormatter(cmd, opts.RootOptions).Render(resp, func(w io.Writer) {
		printResponse(w, resp)
	})
}

func printResponse(w io.Writer, resp guardian.Response) {
	fmt.Fprintln(w, resp.Message)
	fmt.Fprintf(w, "  phase: %s\n", resp.Phase)
	if resp.Huella != "" {
		fmt.Fprintf(w, "  huella: %s\n", resp.Huella)
	}
	if resp.Match != nil {
		fmt.Fprintf(w, "  connection: %s\n", resp.Match.ConnectionCode)
	}
	if c := resp.Consecration; c != nil {
		fmt.Fprintf(w, "  consecration score: %.4f\n", c.Score)
		if c.Eligible {
			fmt.Fprintf(w, "  consecration huella: %s\n", c.Huella)
		}
	}
}

// NewSignalCommand creates the signal command.
func NewSignalCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signal <message>",
		Short: "Leave a signal for whoever offered",
		Long: `Leave a signal of gratitude. Only the first words are kept.

Once consecrated, a visitor with at least one match who leaves a signal
is sealed.

Example:
  cora signal --visitor $V "gracias por tu presencia"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			visitor, err := e.visitor()
			if err != nil {
				return err
			}
			resp, err := e.guardian(visitor).LeaveSignal(ctx, strings.Join(args, " "))
			if err != nil {
				return commandError("failed to leave signal", err)
			}
			return newFormatter(cmd, rootOpts).Render(resp, func(w io.Writer) {
				printResponse(w, resp)
			})
		},
	}
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the visitor's phase and counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			visitor, err := e.visitor()
			if err != nil {
				return err
			}
			g := e.guardian(visitor)
			st, err := g.State(ctx)
			if err != nil {
				return commandError("failed to read state", err)
			}
			prompt, err := g.Prompt(ctx)
			if err != nil {
				return commandError("failed to read state", err)
			}

			return newFormatter(cmd, rootOpts).Render(st, func(w io.Writer) {
				fmt.Fprintf(w, "phase:        %s\n", st.Phase)
				fmt.Fprintf(w, "offers:       %d\n", st.OffersCount)
				fmt.Fprintf(w, "needs:        %d\n", st.NeedsCount)
				fmt.Fprintf(w, "matches:      %d\n", st.Matches)
				fmt.Fprintf(w, "signals left: %d\n", st.SignalsLeft)
				fmt.Fprintf(w, "consecrated:  %t\n", st.Consecrated)
				if st.ConsecrationHuella != "" {
					fmt.Fprintf(w, "  huella:     %s\n", st.ConsecrationHuella)
				}
				fmt.Fprintf(w, "sealed:       %t\n", st.Sealed)
				if st.SealHuella != "" {
					fmt.Fprintf(w, "  huella:     %s\n", st.SealHuella)
				}
				fmt.Fprintf(w, "\n%s\n", prompt.Message)
			})
		},
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show verification statistics of the visitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			visitor, err := e.visitor()
			if err != nil {
				return err
			}
			st, err := e.guardian(visitor).Verifier().Stats(ctx)
			if err != nil {
				return commandError("failed to read stats", err)
			}

			return newFormatter(cmd, rootOpts).Render(st, func(w io.Writer) {
				fmt.Fprintf(w, "verifications:        %d\n", st.Verifications)
				fmt.Fprintf(w, "verified:             %d\n", st.Verified)
				fmt.Fprintf(w, "offers verified:      %d\n", st.OffersVerified)
				fmt.Fprintf(w, "needs verified:       %d\n", st.NeedsVerified)
				fmt.Fprintf(w, "coincidences:         %d\n", st.Coincidences)
				fmt.Fprintf(w, "average authenticity: %.2f\n", st.AverageAuthenticity)
			})
		},
	}
}

// ScoreResult is the output of the score command.
type ScoreResult struct {
	Score   float64               `json:"score"`
	Hash    string                `json:"hash"`
	Pattern ritual.WritingPattern `json:"pattern"`
	Human   bool                  `json:"human"`
	Passes  bool                  `json:"passes_threshold"`
}

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score <text>",
		Short: "Score a text without submitting it",
		Long: `Score a text for authenticity and show its dedup hash and writing
pattern. Nothing is stored and no database is opened.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lex, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			vopts := cfg.Ritual.Verify

			pattern := vopts.Human.Analyze(text)
			res := ScoreResult{
				Score:   verify.NewScorer(lex, vopts.Score).Score(text),
				Hash:    verify.Hash(text),
				Pattern: pattern,
				Human:   vopts.Human.IsHuman(pattern),
			}
			res.Passes = res.Score >= vopts.AcceptanceThreshold

			return newFormatter(cmd, rootOpts).Render(res, func(w io.Writer) {
				fmt.Fprintf(w, "score:   %.2f (threshold %.2f)\n", res.Score, vopts.AcceptanceThreshold)
				fmt.Fprintf(w, "hash:    %s\n", res.Hash)
				fmt.Fprintf(w, "human:   %t\n", res.Human)
			})
		},
	}
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show the visitor's activity log (bitácora)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			visitor, err := e.visitor()
			if err != nil {
				return err
			}
			presences, err := e.guardian(visitor).Log().List(ctx)
			if err != nil {
				return commandError("failed to read log", err)
			}

			return newFormatter(cmd, rootOpts).Render(presences, func(w io.Writer) {
				if len(presences) == 0 {
					fmt.Fprintln(w, "No presences recorded.")
					return
				}
				for _, p := range presences {
					fmt.Fprintf(w, "%s  %-12s %-11s %s\n",
						ritual.ISOTimestamp(p.Timestamp), p.Type, p.Resonance, p.Huella)
				}
			})
		},
	}
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cora/internal/constancy"
	"github.com/roach88/cora/internal/ritual"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Track writing sessions and constancy",
		Long: `Track a visitor's writing sessions.

An open session measures dwell time for offer and need, records silences
every 30 seconds when observed, and rates the depth of each writing.
Closed sessions build up the visitor's constancy.

Examples:
  cora session start --visitor $V
  cora session write --visitor $V "¿qué significa estar presente?"
  cora session end --visitor $V
  cora session constancy --visitor $V`,
	}

	cmd.AddCommand(newSessionStartCommand(rootOpts))
	cmd.AddCommand(newSessionObserveCommand(rootOpts))
	cmd.AddCommand(newSessionWriteCommand(rootOpts))
	cmd.AddCommand(newSessionEndCommand(rootOpts))
	cmd.AddCommand(newSessionStatusCommand(rootOpts))
	cmd.AddCommand(newSessionConstancyCommand(rootOpts))

	return cmd
}

// withTracker opens the environment and the visitor's tracker for fn.
func withTracker(rootOpts *RootOptions, fn func(t *constancy.Tracker) error) error {
	e, err := openEnv(rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	visitor, err := e.visitor()
	if err != nil {
		return err
	}
	return fn(e.constancy(visitor))
}

// sessionError turns ErrNoSession into a hint, other errors into command errors.
func sessionError(message string, err error) error {
	if errors.Is(err, constancy.ErrNoSession) {
		return NewExitError(ExitCommandError, "no open session: run `cora session start`")
	}
	return commandError(message, err)
}

func newSessionStartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Open a session, replacing any open one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(rootOpts, func(t *constancy.Tracker) error {
				s, err := t.StartSession(commandContext(cmd))
				if err != nil {
					return commandError("failed to start session", err)
				}
				return newFormatter(cmd, rootOpts).Render(s, func(w io.Writer) {
					fmt.Fprintf(w, "Session started at %s\n", ritual.ISOTimestamp(s.Start))
				})
			})
		},
	}
}

func newSessionObserveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "observe",
		Short: "Advance the session to now, recording silences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(rootOpts, func(t *constancy.Tracker) error {
				ctx := commandContext(cmd)
				if _, err := t.Observe(ctx); err != nil {
					return sessionError("failed to observe session", err)
				}
				s, err := t.Current(ctx)
				if err != nil {
					return sessionError("failed to read session", err)
				}
				return newFormatter(cmd, rootOpts).Render(s, func(w io.Writer) {
					printSession(w, s)
				})
			})
		},
	}
}

func newSessionWriteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write <text>",
		Short: "Record a writing in the open session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(rootOpts, func(t *constancy.Tracker) error {
				w, err := t.RecordWriting(commandContext(cmd), strings.Join(args, " "))
				if err != nil {
					return sessionError("failed to record writing", err)
				}
				return newFormatter(cmd, rootOpts).Render(w, func(out io.Writer) {
					fmt.Fprintf(out, "huella:    %s\n", w.Huella)
					fmt.Fprintf(out, "depth:     %d\n", w.Depth)
					fmt.Fprintf(out, "authentic: %t\n", w.Authentic)
				})
			})
		},
	}
}

func newSessionEndCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "Close the open session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(rootOpts, func(t *constancy.Tracker) error {
				sum, err := t.EndSession(commandContext(cmd))
				if err != nil {
					return sessionError("failed to end session", err)
				}
				return newFormatter(cmd, rootOpts).Render(sum, func(w io.Writer) {
					fmt.Fprintf(w, "duration: %ds\n", sum.Duration)
					fmt.Fprintf(w, "writings: %d\n", sum.Writings)
					fmt.Fprintf(w, "depth:    %.2f\n", sum.Depth)
					fmt.Fprintf(w, "silences: %d\n", sum.Silences)
				})
			})
		},
	}
}

func newSessionStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the open session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(rootOpts, func(t *constancy.Tracker) error {
				s, err := t.Current(commandContext(cmd))
				if err != nil {
					return sessionError("failed to read session", err)
				}
				return newFormatter(cmd, rootOpts).Render(s, func(w io.Writer) {
					printSession(w, s)
				})
			})
		},
	}
}

func newSessionConstancyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "constancy",
		Short: "Evaluate the visitor's constancy over all sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(rootOpts, func(t *constancy.Tracker) error {
				c, err := t.Evaluate(commandContext(cmd))
				if err != nil {
					return commandError("failed to evaluate constancy", err)
				}
				return newFormatter(cmd, rootOpts).Render(c, func(w io.Writer) {
					fmt.Fprintf(w, "level:           %s\n", c.Level)
					fmt.Fprintf(w, "sessions:        %d\n", c.Sessions)
					fmt.Fprintf(w, "silences:        %d\n", c.Silences)
					fmt.Fprintf(w, "total dwell:     %ds\n", c.TotalDwell)
					fmt.Fprintf(w, "depth evolution: %+d\n", c.DepthEvolution)
				})
			})
		},
	}
}

func printSession(w io.Writer, s constancy.Session) {
	fmt.Fprintf(w, "started:  %s\n", ritual.ISOTimestamp(s.Start))
	fmt.Fprintf(w, "observed: %ds\n", s.Observed)
	fmt.Fprintf(w, "writings: %d\n", len(s.Writings))
	fmt.Fprintf(w, "depth:    %.2f\n", s.Depth)
	fmt.Fprintf(w, "silences: %d\n", s.Silences)
}

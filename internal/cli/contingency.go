package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cora/internal/contingency"
	"github.com/roach88/cora/internal/ritual"
)

// ContingencyOptions holds flags for the contingency subcommands.
type ContingencyOptions struct {
	*RootOptions
	Urgency  string
	Location string
	Decline  bool
	Huella   string
}

// NewContingencyCommand creates the contingency command group.
func NewContingencyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContingencyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "contingency",
		Short: "Convoke offerers and deploy mobile niches in an emergency",
		Long: `Activate a contingency to convoke resonant offerers, deploy mobile
niches and open emergency donations.

Known kinds are desastre_natural, crisis_comunitaria and
emergencia_personal; other kinds fall back to general accompaniment.

Examples:
  cora contingency activate desastre_natural "barrio norte" --urgency alta
  cora contingency need "agua y comida" --location "barrio norte"
  cora contingency respond CONV-... --visitor $V
  cora contingency stats`,
	}

	activate := &cobra.Command{
		Use:   "activate <kind> <location>",
		Short: "Activate a contingency",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			c, err := e.contingency().Activate(commandContext(cmd), args[0], strings.Join(args[1:], " "), opts.Urgency)
			if err != nil {
				return commandError("failed to activate contingency", err)
			}
			return newFormatter(cmd, rootOpts).Render(c, func(w io.Writer) {
				fmt.Fprintf(w, "contingency:   %s (%s, urgency %s)\n", c.ID, c.Kind, c.Urgency)
				fmt.Fprintf(w, "location:      %s\n", c.Location)
				fmt.Fprintf(w, "convoked:      %d\n", len(c.Convoked))
				for _, s := range c.Convoked {
					fmt.Fprintf(w, "  %s  resonance %.2f  %s\n", s.OffererID, s.Resonance, strings.Join(s.RelevantSkills, ", "))
				}
				fmt.Fprintf(w, "mobile niches: %s\n", strings.Join(c.MobileNiches, ", "))
			})
		},
	}
	activate.Flags().StringVar(&opts.Urgency, "urgency", contingency.DefaultUrgency, "urgency (baja|media|alta)")

	need := &cobra.Command{
		Use:   "need <text>",
		Short: "Register an emergency need with simplified verification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.contingency().RegisterEmergencyNeed(commandContext(cmd), strings.Join(args, " "), opts.Location, opts.Urgency)
			if err != nil {
				return commandError("failed to register emergency need", err)
			}
			return newFormatter(cmd, rootOpts).Render(n, func(w io.Writer) {
				fmt.Fprintf(w, "need:   %s\n", n.ID)
				fmt.Fprintf(w, "status: %s\n", n.Status)
				if n.AssignedNiche != "" {
					fmt.Fprintf(w, "niche:  %s\n", n.AssignedNiche)
				}
			})
		},
	}
	need.Flags().StringVar(&opts.Location, "location", "", "where the need is")
	need.Flags().StringVar(&opts.Urgency, "urgency", contingency.DefaultUrgency, "urgency (baja|media|alta)")

	respond := &cobra.Command{
		Use:   "respond <convocation-id>",
		Short: "Accept or decline a convocation",
		Long: `Accept a convocation, or decline it with --decline. The responder huella
defaults to the consecration huella of --visitor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRespond(opts, args[0], cmd)
		},
	}
	respond.Flags().BoolVar(&opts.Decline, "decline", false, "decline the convocation")
	respond.Flags().StringVar(&opts.Huella, "huella", "", "responder huella (defaults to the visitor's consecration huella)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List contingencies and their convocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			p := e.contingency()
			all, err := p.Contingencies(ctx)
			if err != nil {
				return commandError("failed to list contingencies", err)
			}
			convs, err := p.Convocations(ctx)
			if err != nil {
				return commandError("failed to list convocations", err)
			}

			out := ContingencyList{Contingencies: all, Convocations: convs}
			return newFormatter(cmd, rootOpts).Render(out, func(w io.Writer) {
				if len(all) == 0 {
					fmt.Fprintln(w, "No contingencies.")
					return
				}
				for _, c := range all {
					fmt.Fprintf(w, "%s  %s  %-20s %s\n", ritual.ISOTimestamp(c.ActivatedAt), c.ID, c.Kind, c.Location)
				}
				for _, cv := range convs {
					fmt.Fprintf(w, "  %s  %-10s %s\n", cv.ID, cv.Status, cv.ContingencyID)
				}
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show contingency statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			st, err := e.contingency().Stats(commandContext(cmd))
			if err != nil {
				return commandError("failed to read contingency stats", err)
			}
			return newFormatter(cmd, rootOpts).Render(st, func(w io.Writer) {
				fmt.Fprintf(w, "active contingencies: %d\n", st.ActiveContingencies)
				fmt.Fprintf(w, "mobile niches:        %d\n", st.MobileNiches)
				fmt.Fprintf(w, "convoked:             %d\n", st.Convoked)
				fmt.Fprintf(w, "emergency needs:      %d\n", st.EmergencyNeeds)
				if st.LastActivation != nil {
					fmt.Fprintf(w, "last activation:      %s\n", ritual.ISOTimestamp(*st.LastActivation))
				}
			})
		},
	}

	cmd.AddCommand(activate, need, respond, list, stats)
	return cmd
}

// ContingencyList is the output of the contingency list command.
type ContingencyList struct {
	Contingencies []contingency.Contingency `json:"contingencies"`
	Convocations  []contingency.Convocation `json:"convocations"`
}

func runRespond(opts *ContingencyOptions, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	huella := opts.Huella
	if huella == "" && opts.Visitor != "" {
		rec, err := e.guardian(opts.Visitor).Record(ctx)
		if err != nil {
			return commandError("failed to read visitor", err)
		}
		huella = rec.ConsecrationHuella
	}
	if huella == "" && !opts.Decline {
		return NewExitError(ExitFailure, "accepting needs a responder huella: pass --huella or a consecrated --visitor")
	}

	resp, err := e.contingency().Respond(ctx, id, !opts.Decline, huella)
	if err != nil {
		return commandError("failed to respond", err)
	}
	return newFormatter(cmd, opts.RootOptions).Render(resp, func(w io.Writer) {
		if !resp.Accepted {
			fmt.Fprintln(w, "Convocation declined.")
			return
		}
		fmt.Fprintln(w, resp.Message)
		if resp.AssignedNiche != "" {
			fmt.Fprintf(w, "  niche: %s\n", resp.AssignedNiche)
		}
		for _, line := range resp.Instructions {
			fmt.Fprintf(w, "  - %s\n", line)
		}
	})
}

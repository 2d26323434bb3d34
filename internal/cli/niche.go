package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cora/internal/niches"
	"github.com/roach88/cora/internal/ritual"
)

// NewNicheCommand creates the niche command group.
func NewNicheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "niche",
		Short: "Register offerers, search them and run service offices",
		Long: `Niches group consecrated visitors by the kind of help they offer.

Registering as offerer requires a consecrated visitor with at least one
verified offer. Offerers and offices are shared by every visitor.

Examples:
  cora niche register --visitor $V "clases de guitarra" "cuidado de plantas"
  cora niche search "necesito aprender música"
  cora niche map
  cora niche office create --visitor $V "biblioteca del barrio"
  cora niche office activate OSI-... --kind qr --origin https://cora.example/umbral`,
	}

	cmd.AddCommand(newNicheRegisterCommand(rootOpts))
	cmd.AddCommand(newNicheSearchCommand(rootOpts))
	cmd.AddCommand(newNicheMapCommand(rootOpts))
	cmd.AddCommand(newOfficeCommand(rootOpts))

	return cmd
}

func newNicheRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <skill>...",
		Short: "Register the visitor as offerer of the given skills",
		Args:  cobra.MinimumNArgs(1),
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
			rec, err := g.Record(ctx)
			if err != nil {
				return commandError("failed to read visitor", err)
			}
			offers, err := g.Registry().Count(ctx, ritual.KindOffer)
			if err != nil {
				return commandError("failed to count offers", err)
			}

			o, err := e.niches().RegisterOfferer(ctx, niches.Inhabitant{
				Consecrated:        rec.Consecrated,
				VerifiedOffers:     offers,
				ConsecrationHuella: rec.ConsecrationHuella,
			}, args)
			if err != nil {
				return commandError("not registered: a consecrated visitor with a verified offer is required", err)
			}

			return newFormatter(cmd, rootOpts).Render(o, func(w io.Writer) {
				fmt.Fprintf(w, "offerer:        %s\n", o.ID)
				fmt.Fprintf(w, "niche:          %s\n", o.Niche)
				fmt.Fprintf(w, "service huella: %s\n", o.ServiceHuella)
				for _, s := range o.Skills {
					fmt.Fprintf(w, "  - %s (%s)\n", s.Description, s.Category)
				}
			})
		},
	}
}

func newNicheSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <need>",
		Short: "Find offerers compatible with a need",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			found, err := e.niches().FindOfferers(commandContext(cmd), strings.Join(args, " "))
			if err != nil {
				return commandError("failed to search offerers", err)
			}

			return newFormatter(cmd, rootOpts).Render(found, func(w io.Writer) {
				if len(found) == 0 {
					fmt.Fprintln(w, "No compatible offerers.")
					return
				}
				for _, c := range found {
					fmt.Fprintf(w, "%.2f  %s  %s\n", c.Compatibility, c.ID, strings.Join(c.RelevantSkills, ", "))
				}
			})
		},
	}
}

func newNicheMapCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Show offerers grouped by niche",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			m, err := e.niches().NicheMap(commandContext(cmd))
			if err != nil {
				return commandError("failed to build niche map", err)
			}

			return newFormatter(cmd, rootOpts).Render(m, func(w io.Writer) {
				fmt.Fprintf(w, "offerers: %d  active offices: %d\n", m.TotalOfferers, m.ActiveOffices)
				names := make([]string, 0, len(m.Niches))
				for name := range m.Niches {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					n := m.Niches[name]
					fmt.Fprintf(w, "%-20s %d offerer(s)  %s\n", name, n.Offerers, strings.Join(n.Skills, ", "))
				}
			})
		},
	}
}

// OfficeOptions holds flags for the office subcommands.
type OfficeOptions struct {
	*RootOptions
	Huella string
	Kind   string
	Origin string
}

func newOfficeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OfficeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "office",
		Short: "Manage symbolic service offices",
	}

	create := &cobra.Command{
		Use:   "create <location>",
		Short: "Open an office under a responsible huella",
		Long: `Open an office at location. The responsible huella defaults to the
consecration huella of --visitor.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOfficeCreate(opts, strings.Join(args, " "), cmd)
		},
	}
	create.Flags().StringVar(&opts.Huella, "huella", "", "responsible huella (defaults to the visitor's consecration huella)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List offices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			offices, err := e.niches().Offices(commandContext(cmd))
			if err != nil {
				return commandError("failed to list offices", err)
			}
			return newFormatter(cmd, rootOpts).Render(offices, func(w io.Writer) {
				if len(offices) == 0 {
					fmt.Fprintln(w, "No offices.")
					return
				}
				for _, o := range offices {
					fmt.Fprintf(w, "%s  %-8s %3d activation(s)  %s\n", o.ID, o.Status, o.Activations, o.Location)
				}
			})
		},
	}

	activate := &cobra.Command{
		Use:   "activate <office-id>",
		Short: "Record an activation and print its threshold URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			act, err := e.niches().ActivateOffice(commandContext(cmd), args[0], opts.Kind, opts.Origin)
			if err != nil {
				return commandError("failed to activate office", err)
			}
			return newFormatter(cmd, rootOpts).Render(act, func(w io.Writer) {
				fmt.Fprintln(w, act.Message)
				fmt.Fprintf(w, "  code: %s\n", act.Code)
				fmt.Fprintf(w, "  url:  %s\n", act.ThresholdURL)
			})
		},
	}
	activate.Flags().StringVar(&opts.Kind, "kind", "qr", "activation kind (qr|tarjeta|presencial)")
	activate.Flags().StringVar(&opts.Origin, "origin", "", "threshold URL the activation points to")

	cmd.AddCommand(create, list, activate)
	return cmd
}

func runOfficeCreate(opts *OfficeOptions, location string, cmd *cobra.Command) error {
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
	if huella == "" {
		return NewExitError(ExitFailure, "an office needs a responsible huella: pass --huella or a consecrated --visitor")
	}

	o, err := e.niches().CreateOffice(ctx, location, huella)
	if err != nil {
		return commandError("failed to create office", err)
	}
	return newFormatter(cmd, opts.RootOptions).Render(o, func(w io.Writer) {
		fmt.Fprintf(w, "office:      %s\n", o.ID)
		fmt.Fprintf(w, "location:    %s\n", o.Location)
		fmt.Fprintf(w, "responsible: %s\n", o.ResponsibleHuella)
	})
}

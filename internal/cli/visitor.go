package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cora/internal/guardian"
)

// VisitorOptions holds flags for the visitor command.
type VisitorOptions struct {
	*RootOptions
	Origin string
	List   bool
}

// VisitorResult is the output of the visitor command.
type VisitorResult struct {
	Visitor  string            `json:"visitor"`
	Response guardian.Response `json:"response"`
}

// NewVisitorCommand creates the visitor command.
func NewVisitorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VisitorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "visitor",
		Short: "Cross the threshold as a new visitor",
		Long: `Create a visitor, record its arrival and print its ID.

Every other ritual command takes the ID through --visitor. With --list the
registered visitors are listed instead.

Examples:
  V=$(cora visitor --origin qr)
  cora visitor --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.List {
				return runVisitorList(opts, cmd)
			}
			return runVisitor(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Origin, "origin", "", "how the visitor arrived (qr, tarjeta, presencial, or a URL)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list registered visitors")

	return cmd
}

func runVisitor(opts *VisitorOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	id := opts.Visitor
	if id == "" {
		id = e.ids.Generate()
	}
	if err := e.store.RegisterVisitor(ctx, id, e.clock.Now()); err != nil {
		return commandError("failed to register visitor", err)
	}
	resp, err := e.guardian(id).Start(ctx, opts.Origin)
	if err != nil {
		return commandError("failed to start ritual", err)
	}
	f := newFormatter(cmd, opts.RootOptions)
	f.VerboseLog("visitor %s at phase %s", id, resp.Phase)

	res := VisitorResult{Visitor: id, Response: resp}
	return f.Render(res, func(w io.Writer) {
		fmt.Fprintln(w, id)
	})
}

func runVisitorList(opts *VisitorOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	visitors, err := e.store.Visitors(commandContext(cmd))
	if err != nil {
		return commandError("failed to list visitors", err)
	}

	return newFormatter(cmd, opts.RootOptions).Render(visitors, func(w io.Writer) {
		if len(visitors) == 0 {
			fmt.Fprintln(w, "No visitors registered.")
			return
		}
		for _, v := range visitors {
			fmt.Fprintf(w, "%s  %s\n", v.CreatedAt, v.ID)
		}
	})
}

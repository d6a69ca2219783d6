package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"modelr/internal/schema"
)

func (a *app) scriptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scripts",
		Short: "List the scripts offered by the plotting server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			docs, err := s.plot.Scripts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\n", d.Script, firstLine(d.Doc))
			}
			return tw.Flush()
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <script>",
		Short: "Show the arguments a script accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			info, err := s.plot.ScriptInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if info.Description != "" {
				fmt.Fprintf(out, "%s\n\n", info.Description)
			}
			return writeSchema(out, info)
		},
	}
}

func writeSchema(w io.Writer, info *schema.Info) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDEFAULT\tREQUIRED\tHELP")
	for _, name := range info.Names() {
		arg := info.Arguments[name]
		help := arg.Help
		if len(arg.Choices) > 0 {
			help = strings.TrimSpace(help + " [" + strings.Join(arg.Choices, "|") + "]")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", name, arg.Kind(), arg.DefaultValue().Raw, arg.Required, help)
	}
	return tw.Flush()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

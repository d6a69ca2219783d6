package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"modelr/internal/workspace"
)

func (a *app) newCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create a scenario and make it current",
		Long:  "Create a scenario and make it current. Without a name, one is generated.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "scenario-" + uuid.NewString()[:8]
			if len(args) == 1 {
				name = args[0]
			}

			s, err := a.open(cmd.Context(), script != "")
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.store.GetScenario(name); err == nil {
				return fmt.Errorf("scenario %s already exists", name)
			} else if !errors.Is(err, workspace.ErrNotFound) {
				return err
			}

			sc := s.newScenario(name)
			if script != "" {
				if err := s.selectScript(cmd.Context(), sc, script, nil); err != nil {
					return err
				}
			}
			if err := s.save(sc); err != nil {
				return err
			}
			if err := s.store.SetCurrent(name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "script to select and default")
	return cmd
}

func (a *app) useCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Make a workspace scenario current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.store.GetScenario(args[0]); err != nil {
				return err
			}
			return s.store.SetCurrent(args[0])
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List workspace scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			names, err := s.store.ListScenarios()
			if err != nil {
				return err
			}
			current, _ := s.store.Current()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range names {
				mark := " "
				if name == current {
					mark = "*"
				}
				script := ""
				if snap, err := s.store.GetScenario(name); err == nil {
					script = snap.Script
				}
				fmt.Fprintf(tw, "%s %s\t%s\n", mark, name, script)
			}
			return tw.Flush()
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a scenario from the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.store.GetScenario(args[0]); err != nil {
				return err
			}
			return s.store.DeleteScenario(args[0])
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:   %s\n", sc.Name())
			fmt.Fprintf(out, "script: %s\n", sc.Script())
			fmt.Fprintf(out, "state:  %s\n", sc.State())

			args := sc.Arguments()
			names := make([]string, 0, len(args))
			for n := range args {
				names = append(names, n)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, n := range names {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", n, args[n].Kind, args[n].Raw)
			}
			return tw.Flush()
		},
	}
}

func (a *app) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <script>",
		Short: "Switch the current scenario to a script, resetting its arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}
			if err := s.selectScript(cmd.Context(), sc, args[0], nil); err != nil {
				return err
			}
			return s.save(sc)
		},
	}
}

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <attr> <value>",
		Short: "Set an argument of the current scenario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}
			if err := sc.Update(args[0], args[1]); err != nil {
				return err
			}
			return s.save(sc)
		},
	}
}

func (a *app) defaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Reset the current scenario's arguments to the script defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}
			if err := sc.DefaultArgs(nil); err != nil {
				return err
			}
			return s.save(sc)
		},
	}
}

func (a *app) qsCmd() *cobra.Command {
	var asURL bool
	cmd := &cobra.Command{
		Use:   "qs",
		Short: "Print the current scenario's plot query string",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}
			q, err := sc.QueryString()
			if err != nil {
				return err
			}
			if asURL {
				q = s.plot.PlotURL(q)
			}
			fmt.Fprintln(cmd.OutOrStdout(), q)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asURL, "url", false, "print the full plot URL")
	return cmd
}

func (a *app) plotCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render the current scenario on the plotting server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}
			q, err := sc.QueryString()
			if err != nil {
				return err
			}
			img, err := s.plot.Plot(cmd.Context(), q)
			if err != nil {
				return err
			}
			if output == "" {
				output = sc.Name() + ".jpeg"
			}
			if err := os.WriteFile(output, img, 0o644); err != nil {
				return fmt.Errorf("write plot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "image file (default <scenario>.jpeg)")
	return cmd
}

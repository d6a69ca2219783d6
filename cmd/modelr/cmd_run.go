package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"modelr/internal/recipe"
)

func (a *app) runCmd() *cobra.Command {
	var (
		asURL  bool
		asJSON bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run <recipe.lua>",
		Short: "Run a Lua recipe against the current scenario",
		Long: `Run a Lua recipe against the current scenario. Recipes edit the scenario
through the scenario table (get, set, defaults, select, qs, capture) and may
capture several query strings to produce a parameter sweep. Changes are
saved to the workspace unless --dry-run is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read recipe: %w", err)
			}

			s, err := a.open(cmd.Context(), !dryRun)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}

			engine := recipe.NewEngine(s.plot, a.cfg.recipeTimeout(), a.logger)
			res := engine.Run(cmd.Context(), sc, string(code))
			if asURL {
				for i := range res.Captures {
					res.Captures[i].Query = s.plot.PlotURL(res.Captures[i].Query)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				for _, l := range res.Logs {
					fmt.Fprintf(out, "log: %s\n", l)
				}
				for _, c := range res.Captures {
					if c.Label != "" {
						fmt.Fprintf(out, "%s\t%s\n", c.Label, c.Query)
					} else {
						fmt.Fprintln(out, c.Query)
					}
				}
			}

			if !res.OK {
				return fmt.Errorf("recipe %s: %s", args[0], res.Error)
			}
			if dryRun {
				return nil
			}
			return s.save(sc)
		},
	}
	cmd.Flags().BoolVar(&asURL, "url", false, "print captures as full plot URLs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run result as JSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not save changes or publish notifications")
	return cmd
}

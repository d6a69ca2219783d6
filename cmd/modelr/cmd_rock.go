package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"modelr/internal/rock"
)

func (a *app) rockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rock",
		Short: "Manage the rocks available to rock arguments",
	}
	cmd.AddCommand(a.rockAddCmd(), a.rockRmCmd(), a.rockLsCmd())
	return cmd
}

func (a *app) rockAddCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <name> <vp> <vs> <rho>",
		Short: "Add or replace a workspace rock",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var props [3]float64
			for i, raw := range args[1:] {
				f, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("parse %s: %w", raw, err)
				}
				props[i] = f
			}
			r := rock.Rock{Name: args[0], Description: description, VP: props[0], VS: props[1], Rho: props[2]}

			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.store.SaveRock(r)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	return cmd
}

func (a *app) rockRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a workspace rock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.store.DeleteRock(args[0])
		},
	}
}

func (a *app) rockLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List configured and workspace rocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVALUE\tDESCRIPTION")
			for _, r := range s.rocks {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Value(), r.Description)
			}
			return tw.Flush()
		},
	}
}

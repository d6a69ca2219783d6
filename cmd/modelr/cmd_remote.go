package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modelr/internal/notify"
)

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put",
		Short: "Save the current scenario on the scenario backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.current()
			if err != nil {
				return err
			}
			if err := sc.Put(cmd.Context(), s.backend); err != nil {
				return err
			}
			s.bus.Emit(notify.Event{
				Type:     notify.EventScenarioSaved,
				Scenario: sc.Name(),
				Data:     map[string]string{"script": sc.Script()},
			})
			return s.save(sc)
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Load a scenario from the scenario backend and make it current",
		Long: `Load a scenario from the scenario backend and make it current. The
script's schema is fetched and the saved arguments are applied over its
defaults. A workspace scenario with the same name is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			sc := s.newScenario(args[0])
			if err := sc.Get(cmd.Context(), s.backend, s.plot); err != nil {
				return err
			}
			s.bus.Emit(notify.Event{
				Type:     notify.EventScenarioLoaded,
				Scenario: sc.Name(),
				Data:     map[string]string{"script": sc.Script()},
			})
			if err := s.save(sc); err != nil {
				return err
			}
			if err := s.store.SetCurrent(sc.Name()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sc.Name(), sc.Script())
			return nil
		},
	}
}

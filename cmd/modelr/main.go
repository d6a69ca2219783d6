package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "modelr",
		Short: "Build, edit and save seismic modelling scenarios",
		Long: `modelr drives a modelr plotting server: it lists scripts and their
arguments, keeps named scenarios in a local workspace, renders query strings
and plots for them, and saves or loads them on the scenario backend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", defaultConfigPath, "config file")

	root.AddCommand(
		a.scriptsCmd(),
		a.infoCmd(),
		a.newCmd(),
		a.useCmd(),
		a.lsCmd(),
		a.rmCmd(),
		a.showCmd(),
		a.selectCmd(),
		a.setCmd(),
		a.defaultsCmd(),
		a.qsCmd(),
		a.plotCmd(),
		a.putCmd(),
		a.getCmd(),
		a.rockCmd(),
		a.runCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the modelr version",
		Args:  cobra.NoArgs,
		// Skips config loading in the root's PersistentPreRunE.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "modelr", version)
		},
	}
}

package main

import (
	"github.com/spf13/cobra"
)

var configFile string

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "zero-agent-demo",
		Short:   "Run a demo echo agent over the zero asynchronous execution runtime",
		Version: "0.1.0",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (defaults applied if omitted)")

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildVersionCommand())
	return root
}

func buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the demo binary's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(cmd.Root().Version)
			return nil
		},
	}
}

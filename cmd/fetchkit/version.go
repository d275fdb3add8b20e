package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/fetchkit"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), fetchkit.GetVersion())
		},
	}
}

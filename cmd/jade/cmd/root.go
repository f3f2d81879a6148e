// Package cmd implements the jade command-line tool: submit-jobs,
// try-submit-jobs, run-jobs, resubmit-jobs, and cancel-jobs. Grounded on
// _examples/original_source/jade/cli's click commands of the same names,
// wired together with spf13/cobra the way armadactl's cmd package wires
// its own subcommands onto a RootCmd.
package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root Cobra command; cmd/jade/main.go calls Execute on it.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jade",
		Short: "jade automates the submission and execution of many small jobs on an HPC cluster.",
	}

	root.AddCommand(
		submitJobsCmd(),
		trySubmitJobsCmd(),
		runJobsCmd(),
		resubmitJobsCmd(),
		cancelJobsCmd(),
	)

	return root
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitSolved        = 10
	exitInvalid       = 15 // A meeting list breaks a hard rule
	exitInfeasible    = 20
	exitUnknown       = 30 // Time budget exhausted without a solution
	exitContradiction = 40
	exitFailure       = 1
)

// exitError carries the process exit code of a finished command
type exitError struct {
	code int
	err  error
}

func (err exitError) Error() string {
	if err.err == nil {
		return fmt.Sprintf("exit status %d", err.code)
	}
	return err.err.Error()
}

func (err exitError) Unwrap() error {
	return err.err
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "labscheduling",
		Short:         "Assign lab meetings to classes, trainers and calendar slots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringP("config", "c", "", "configuration file (yaml or json)")
	cmd.PersistentFlags().StringP("input", "i", "", "catalog: a JSON file or a directory of CSV tables")
	cmd.PersistentFlags().StringP("suffix", "s", "", "dataset suffix of the CSV tables")
	_ = cmd.MarkPersistentFlagRequired("input")

	cmd.AddCommand(newSolveCommand(), newVerifyCommand())
	return cmd
}

func main() {
	os.Exit(exitCode(newRootCommand().Execute()))
}

func exitCode(err error) int {
	var exit exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, exit.err)
		}
		return exit.code
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	return 0
}

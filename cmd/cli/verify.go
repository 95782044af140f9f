package main

import (
	"fmt"

	"github.com/limaJavier/labscheduling/internal/logger"
	"github.com/limaJavier/labscheduling/pkg/model"
	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/spf13/cobra"
)

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <meetings file>",
		Short: "Check a meeting list against every hard rule of a catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	_, input, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	meetings, err := readMeetings(args[0])
	if err != nil {
		return fmt.Errorf("cannot read meetings: %w", err)
	}

	// Verification never reaches the solver
	timetabler := model.NewTimetabler(sat.NewGophersatSolver(logger.New("verify")), model.Options{Logger: logger.New("verify")})
	if err := timetabler.Verify(meetings, input); err != nil {
		return exitError{exitInvalid, err}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d meetings satisfy every hard rule\n", len(meetings))
	return exitError{code: exitSolved}
}

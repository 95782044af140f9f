package main

import (
	"fmt"
	"os"

	"github.com/limaJavier/labscheduling/internal/config"
	"github.com/limaJavier/labscheduling/internal/logger"
	"github.com/limaJavier/labscheduling/pkg/model"
	"github.com/spf13/cobra"
)

// loadCatalog reads the configuration and the catalog named by the persistent flags
func loadCatalog(cmd *cobra.Command) (*config.Config, model.ModelInput, error) {
	configPath, _ := cmd.Flags().GetString("config")
	inputPath, _ := cmd.Flags().GetString("input")
	suffix, _ := cmd.Flags().GetString("suffix")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, model.ModelInput{}, fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, model.ModelInput{}, fmt.Errorf("logging level: %w", err)
	}

	context, err := model.NewCalendarContext(cfg.Calendar)
	if err != nil {
		return nil, model.ModelInput{}, err
	}
	calendar := model.NewCalendar(context)

	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, model.ModelInput{}, err
	}
	var raw model.RawModelInput
	if info.IsDir() {
		raw, err = model.RawInputFromCsv(inputPath, suffix)
	} else {
		raw, err = model.RawInputFromJson(inputPath)
	}
	if err != nil {
		return nil, model.ModelInput{}, fmt.Errorf("cannot read catalog: %w", err)
	}

	// Overrides of the catalog take precedence over the configured ones
	raw.Overrides = append(raw.Overrides, cfg.Overrides...)
	if len(raw.PriorityGrades) == 0 {
		raw.PriorityGrades = cfg.PriorityGrades
	}

	input, err := model.ProcessRawInput(raw, calendar)
	if err != nil {
		return nil, model.ModelInput{}, err
	}
	return cfg, input, nil
}

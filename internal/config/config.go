package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/limaJavier/labscheduling/pkg/model"
	"github.com/samber/lo"
)

const EnvPrefix = "LAB_"

type Config struct {
	Calendar       model.CalendarConfig    `koanf:"calendar"`
	Weights        map[string]int64        `koanf:"weights"` // Soft constraint weights by kind; absent kinds take the defaults
	Overrides      []model.MeetingOverride `koanf:"overrides"`
	PriorityGrades []uint64                `koanf:"priority_grades"`
	Solver         SolverConfig            `koanf:"solver"`
	Logging        LoggingConfig           `koanf:"logging"`
}

type SolverConfig struct {
	// Backend selects the solver: "gophersat" (in process) or "opb" (external executable)
	Backend string `koanf:"backend"`
	// Executable and Args run the "opb" backend; see sat.NewOPBSolver for the placeholders
	Executable       string   `koanf:"executable"`
	Args             []string `koanf:"args"`
	TimeLimitSeconds int      `koanf:"time_limit_seconds" validate:"gt=0"`
	Workers          int      `koanf:"workers" validate:"gte=0"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

// Load reads the configuration file, when one is given, and applies LAB_ environment overrides on top of it.
// Nested keys are separated by a double underscore: LAB_SOLVER__WORKERS=4
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) SetDefaults() {
	if cfg.Calendar.Weekdays == 0 {
		cfg.Calendar.Weekdays = 6
	}
	if len(cfg.Calendar.Slots) == 0 {
		cfg.Calendar.Slots = model.DefaultSlots()
	}
	if cfg.Solver.Backend == "" {
		cfg.Solver.Backend = "gophersat"
	}
	if cfg.Solver.TimeLimitSeconds == 0 {
		cfg.Solver.TimeLimitSeconds = 60
	}
	if cfg.Solver.Workers == 0 {
		cfg.Solver.Workers = runtime.NumCPU()
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (cfg Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.ModelWeights(); err != nil {
		return err
	}
	switch cfg.Solver.Backend {
	case "gophersat":
	case "opb":
		if cfg.Solver.Executable == "" {
			return fmt.Errorf("the opb backend requires solver.executable")
		}
	default:
		return fmt.Errorf("unknown solver backend %s", cfg.Solver.Backend)
	}
	return nil
}

// ModelWeights merges the configured weights over the default ones
func (cfg Config) ModelWeights() (map[model.Kind]int64, error) {
	weights := model.DefaultWeights()
	soft := model.SoftKinds()
	for name, weight := range cfg.Weights {
		kind := model.Kind(strings.ToLower(name))
		if !lo.Contains(soft, kind) {
			return nil, fmt.Errorf("unknown soft constraint %q", name)
		}
		if weight < 0 {
			return nil, fmt.Errorf("weight of %v must not be negative", kind)
		}
		weights[kind] = weight
	}
	return weights, nil
}

func (cfg Config) TimeLimit() time.Duration {
	return time.Duration(cfg.Solver.TimeLimitSeconds) * time.Second
}

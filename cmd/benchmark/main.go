package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/limaJavier/labscheduling/internal/logger"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Exit codes of the labscheduling executable
const (
	exitSolved        = 10
	exitInfeasible    = 20
	exitUnknown       = 30
	exitContradiction = 40
)

var results = map[int]string{
	exitSolved:        "solved",
	exitInfeasible:    "infeasible",
	exitUnknown:       "timeout",
	exitContradiction: "contradiction",
}

type BenchmarkResult struct {
	Catalog       string  `csv:"catalog"`
	Solver        string  `csv:"solver"`
	TimeLimit     string  `csv:"time_limit"`
	Duration      int64   `csv:"duration_ms"`
	Memory        float32 `csv:"memory_mb"`
	CpuPercentage int64   `csv:"cpu_percentage"`
	Result        string  `csv:"result"`
}

type benchmark struct {
	executable string
	config     string
	catalogs   string
	solvers    []string
	limits     []time.Duration
	out        string
}

func main() {
	var bench benchmark
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure the labscheduling executable over every catalog of a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bench.run()
		},
	}
	cmd.Flags().StringVar(&bench.executable, "executable", "../../bin/labscheduling", "labscheduling executable")
	cmd.Flags().StringVar(&bench.config, "config", "../../config.yaml", "configuration passed to every run")
	cmd.Flags().StringVar(&bench.catalogs, "catalogs", "../../test/catalogs/", "directory of JSON catalogs")
	cmd.Flags().StringSliceVar(&bench.solvers, "solvers", []string{"gophersat"}, "solver backends to compare")
	cmd.Flags().DurationSliceVar(&bench.limits, "time-limits", []time.Duration{10 * time.Second, time.Minute}, "time budgets to compare")
	cmd.Flags().StringVar(&bench.out, "out", "benchmark_results.csv", "result file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (bench benchmark) run() error {
	log := logger.New("benchmark")

	catalogs, err := filepath.Glob(filepath.Join(bench.catalogs, "*.json"))
	if err != nil {
		return err
	}
	benchmarkResults := make([]BenchmarkResult, 0, len(catalogs)*len(bench.solvers)*len(bench.limits))

	for _, catalog := range catalogs {
		for _, solver := range bench.solvers {
			for _, limit := range bench.limits {
				log.Info().Str("catalog", catalog).Str("solver", solver).Dur("limit", limit).Msg("benchmarking")

				result, err := bench.measure(catalog, solver, limit)
				if err != nil {
					return err
				}
				benchmarkResults = append(benchmarkResults, result)
			}
		}
	}

	file, err := os.Create(bench.out)
	if err != nil {
		return fmt.Errorf("cannot create CSV file: %w", err)
	}
	defer file.Close()
	return gocsv.MarshalFile(&benchmarkResults, file)
}

func (bench benchmark) measure(catalog, solver string, limit time.Duration) (BenchmarkResult, error) {
	cmd := exec.Command("/usr/bin/time", "-v", bench.executable, "solve",
		"--config", bench.config,
		"--input", catalog,
		"--solver", solver,
		"--time-limit", limit.String(),
		"--out", os.DevNull,
	)

	var stdErr bytes.Buffer
	cmd.Stderr = &stdErr
	if err := cmd.Run(); err != nil && cmd.ProcessState == nil {
		return BenchmarkResult{}, err
	}

	result, ok := results[cmd.ProcessState.ExitCode()]
	if !ok {
		return BenchmarkResult{}, fmt.Errorf("labscheduling failed on %v with solver %v and time limit %v: %v", catalog, solver, limit, stdErr.String())
	}

	splits := strings.Split(stdErr.String(), "\n")
	getLine := func(substr string) (string, error) {
		line, ok := lo.Find(splits, func(line string) bool {
			return strings.Contains(strings.ToLower(line), substr)
		})
		if !ok {
			return "", fmt.Errorf("substring %q could not be found", substr)
		}
		return line, nil
	}

	measured := BenchmarkResult{Catalog: catalog, Solver: solver, TimeLimit: limit.String(), Result: result}
	line, err := getLine("wall clock")
	if err != nil {
		return BenchmarkResult{}, err
	}
	if measured.Duration, err = parseDurationLine(line); err != nil {
		return BenchmarkResult{}, err
	}
	if line, err = getLine("maximum resident set size"); err != nil {
		return BenchmarkResult{}, err
	}
	if measured.Memory, err = parseMemoryLine(line); err != nil {
		return BenchmarkResult{}, err
	}
	if line, err = getLine("percent of cpu"); err != nil {
		return BenchmarkResult{}, err
	}
	if measured.CpuPercentage, err = parseCpuPercentageLine(line); err != nil {
		return BenchmarkResult{}, err
	}
	return measured, nil
}

func parseDurationLine(line string) (int64, error) {
	_, durationStr, found := strings.Cut(line, "(h:mm:ss or m:ss):")
	if !found {
		return 0, fmt.Errorf("unexpected duration line: %v", line)
	}
	return parseDuration(strings.TrimSpace(durationStr))
}

// parseDuration turns an "h:mm:ss.cc" or "m:ss.cc" elapsed time into milliseconds
func parseDuration(durationStr string) (int64, error) {
	parts := strings.Split(durationStr, ":")
	seconds, hundredths, found := strings.Cut(parts[len(parts)-1], ".")
	if !found || len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unexpected duration format: %v", durationStr)
	}

	fields := append(parts[:len(parts)-1:len(parts)-1], seconds, hundredths)
	values := make([]int64, len(fields))
	for i, field := range fields {
		value, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected duration format: %v", durationStr)
		}
		values[i] = value
	}

	var hours, minutes int64
	if len(parts) == 3 { // h:mm:ss
		hours, minutes = values[0], values[1]
	} else { // m:ss
		minutes = values[0]
	}
	secondsValue, hundredthsValue := values[len(values)-2], values[len(values)-1]
	return (hours*3600+minutes*60+secondsValue)*1000 + hundredthsValue*10, nil
}

func parseMemoryLine(line string) (float32, error) {
	_, memoryStr, _ := strings.Cut(line, ":")
	memory, err := strconv.ParseFloat(strings.TrimSpace(memoryStr), 32)
	if err != nil {
		return 0, err
	}
	return float32(memory) / 1024, nil
}

func parseCpuPercentageLine(line string) (int64, error) {
	_, percentageStr, _ := strings.Cut(line, ":")
	return strconv.ParseInt(strings.TrimSuffix(strings.TrimSpace(percentageStr), "%"), 10, 64)
}

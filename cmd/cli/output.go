package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/limaJavier/labscheduling/pkg/model"
)

const (
	formatJson = "json"
	formatCsv  = "csv"
)

type solutionOutput struct {
	RunId       string          `json:"runId"`
	Status      string          `json:"status"`
	Objective   int64           `json:"objective"`
	Bound       int64           `json:"bound"`
	Variables   int             `json:"variables"`
	Constraints int             `json:"constraints"`
	Meetings    []model.Meeting `json:"meetings"`
}

// writeSolution writes the solution to the file, or to stdout when file is empty. The CSV format holds the meetings only
func writeSolution(stdout io.Writer, file, format string, solution model.Solution) error {
	out := stdout
	if file != "" {
		created, err := os.Create(file)
		if err != nil {
			return err
		}
		defer created.Close()
		out = created
	}

	if format == formatCsv {
		return gocsv.Marshal(solution.Meetings, out)
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(solutionOutput{
		RunId:       solution.RunId.String(),
		Status:      solution.Status.String(),
		Objective:   solution.Objective,
		Bound:       solution.Bound,
		Variables:   solution.Variables,
		Constraints: solution.Constraints,
		Meetings:    solution.Meetings,
	})
}

// readMeetings reads a meeting list written by writeSolution; the format follows the file extension
func readMeetings(file string) ([]model.Meeting, error) {
	opened, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer opened.Close()

	meetings := make([]model.Meeting, 0)
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		if err := gocsv.Unmarshal(opened, &meetings); err != nil {
			return nil, err
		}
	case ".json":
		var output solutionOutput
		if err := json.NewDecoder(opened).Decode(&output); err != nil {
			return nil, err
		}
		meetings = append(meetings, output.Meetings...)
	default:
		return nil, fmt.Errorf("unsupported meetings format: %s", filepath.Ext(file))
	}
	return meetings, nil
}

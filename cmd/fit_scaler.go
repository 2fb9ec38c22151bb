package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"airquality/ml"
	"airquality/pipeline"
)

var fitScalerFlags struct {
	input  string
	output string
	kind   string
}

var fitScalerCmd = &cobra.Command{
	Use:   "fit-scaler",
	Short: "Fit a feature scaler from a CSV of readings and save it as JSON",
	Long: `Reads rows of ten numeric columns in model order
(pm25, pm10, so2, no2, co, o3, temperature, humidity, wind_speed, pressure).
A header row naming those columns is skipped.`,
	RunE: runFitScaler,
}

func init() {
	f := fitScalerCmd.Flags()
	f.StringVar(&fitScalerFlags.input, "input", "", "CSV file of readings (required)")
	f.StringVar(&fitScalerFlags.output, "output", "scaler.json", "where to write the scaler")
	f.StringVar(&fitScalerFlags.kind, "kind", string(ml.ScalerStandard), "scaler kind: standard or minmax")

	_ = fitScalerCmd.MarkFlagRequired("input")
}

func runFitScaler(cmd *cobra.Command, _ []string) error {
	file, err := os.Open(fitScalerFlags.input)
	if err != nil {
		return err
	}
	defer file.Close()

	raw, err := readRows(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", fitScalerFlags.input, err)
	}

	cleaner := pipeline.NewDataCleaner()
	rows, issues := cleaner.Clean(raw)
	out := cmd.OutOrStdout()
	for _, issue := range issues {
		fmt.Fprintf(out, "dropped row %d (%s): %s\n", issue.Row+1, issue.Type, issue.Message)
	}
	stats := cleaner.GetStats()
	fmt.Fprintf(out, "cleaned %d rows: %d kept, %d dropped, %d corrected\n",
		stats.TotalProcessed, stats.Passed, stats.Rejected, stats.Corrected)
	if len(rows) == 0 {
		return errors.New("no readings left after cleaning")
	}

	var scaler *ml.Scaler
	switch ml.ScalerKind(fitScalerFlags.kind) {
	case ml.ScalerStandard:
		scaler, err = ml.FitStandardScaler(rows)
	case ml.ScalerMinMax:
		scaler, err = ml.FitMinMaxScaler(rows)
	default:
		return fmt.Errorf("unknown scaler kind %q", fitScalerFlags.kind)
	}
	if err != nil {
		return err
	}
	if err := scaler.Save(fitScalerFlags.output); err != nil {
		return err
	}
	fmt.Fprintf(out, "fitted %s scaler on %d rows, saved to %s\n", scaler.Kind, len(rows), fitScalerFlags.output)
	return nil
}

// readRows parses CSV readings, skipping a leading header row. Value checks
// are left to the cleaner.
func readRows(r io.Reader) ([][]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = ml.FeatureCount
	reader.TrimLeadingSpace = true

	var rows [][]float64
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), ml.FeatureNames()[0]) {
			continue
		}
		row := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("no readings")
	}
	return rows, nil
}

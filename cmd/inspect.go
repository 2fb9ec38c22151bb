package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"airquality/config"
	"airquality/ml"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Resolve model artifacts and print what would serve predictions",
	RunE:  runInspect,
}

type inspectReport struct {
	Config      string       `json:"config"`
	Mode        ml.Mode      `json:"mode"`
	ModelLoaded bool         `json:"model_loaded"`
	ModelPath   string       `json:"model_path,omitempty"`
	ModelError  string       `json:"model_error,omitempty"`
	ScalerPath  string       `json:"scaler_path,omitempty"`
	ScalerKind  string       `json:"scaler_kind,omitempty"`
	ScalerError string       `json:"scaler_error,omitempty"`
	Info        ml.ModelInfo `json:"model_info"`
	// Reference is the prediction for the built-in reference sample.
	Reference float64 `json:"reference_aqi"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	artifacts := ml.NewArtifactLoader(cfg.Model.LoaderConfig(), nil).Load()
	predictor := ml.NewPredictor(artifacts, nil, ml.WithNoise(nil, 0))

	report := inspectReport{
		Config:      configPath,
		Mode:        artifacts.Mode,
		ModelLoaded: artifacts.ModelLoaded(),
		ModelPath:   artifacts.ModelPath,
		ScalerPath:  artifacts.ScalerPath,
		Info:        predictor.Info(),
	}
	if artifacts.ModelErr != nil {
		report.ModelError = artifacts.ModelErr.Error()
	}
	if artifacts.ScalerErr != nil {
		report.ScalerError = artifacts.ScalerErr.Error()
	}
	if artifacts.Scaler != nil {
		report.ScalerKind = string(artifacts.Scaler.Kind)
	}

	result, err := predictor.Predict(ml.ReferenceSample())
	if err != nil {
		return fmt.Errorf("predict reference sample: %w", err)
	}
	report.Reference = result.AQI

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// aqiserver serves AQI predictions over HTTP and manages model artifacts.
//
// Usage:
//
//	aqiserver serve [--config=config.yaml]
//	aqiserver inspect [--config=config.yaml]
//	aqiserver fit-scaler --input=readings.csv --output=assets/scaler.json [--kind=standard|minmax]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"airquality/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aqiserver",
	Short: "Air quality index prediction service",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	defaultConfig := config.Find("config.yaml")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(fitScalerCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"airquality/ml"
)

// Config is the decoded config.yaml.
type Config struct {
	Http  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
	Model ModelConfig `yaml:"model"`
}

// HTTPConfig configures the listener and middleware.
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// LogConfig configures the zap logger and its optional rotating file.
type LogConfig struct {
	Level string `yaml:"level"`
	// File enables a rotating log file in addition to stdout.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ModelConfig configures artifact lookup and the fallback used without a model.
type ModelConfig struct {
	ModelPaths       []string `yaml:"model_paths"`
	ModelPointerFile string   `yaml:"model_pointer_file"`
	ScalerPaths      []string `yaml:"scaler_paths"`
	Fallback         string   `yaml:"fallback"`
	DummySeed        uint64   `yaml:"dummy_seed"`
	MockNoiseStdDev  *float64 `yaml:"mock_noise_stddev"`
	MaxBatchSize     int      `yaml:"max_batch_size"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	noise := ml.DefaultMockNoiseStdDev
	return &Config{
		Http: HTTPConfig{
			Port:         8000,
			Timeout:      30 * time.Second,
			MaxBodyBytes: 1 << 20,
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
			},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Model: ModelConfig{
			ModelPaths: []string{
				filepath.Join("assets", "air_quality_lstm_model.json"),
				"saved_model.json",
				filepath.Join("..", "saved_model.json"),
			},
			ModelPointerFile: "model_path.txt",
			ScalerPaths: []string{
				filepath.Join("assets", "scaler.json"),
				"scaler.json",
				filepath.Join("..", "scaler.json"),
			},
			Fallback:        string(ml.FallbackDummy),
			DummySeed:       42,
			MockNoiseStdDev: &noise,
			MaxBatchSize:    100,
		},
	}
}

// Find returns the first of path and ../path that exists, or "" when neither does.
func Find(path string) string {
	for _, candidate := range []string{path, filepath.Join("..", path)} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load decodes path over Default. A missing file yields the defaults with
// artifact paths relative to the working directory; relative artifact paths
// in a file are taken relative to that file's directory.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	config.resolvePaths(filepath.Dir(path))
	return config, nil
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if _, err := ml.ParseFallbackMode(c.Model.Fallback); err != nil {
		return fmt.Errorf("model.fallback: %w", err)
	}
	if c.Model.MockNoiseStdDev != nil && *c.Model.MockNoiseStdDev < 0 {
		return errors.New("model.mock_noise_stddev must not be negative")
	}
	if c.Model.MaxBatchSize <= 0 {
		return errors.New("model.max_batch_size must be positive")
	}
	return nil
}

func (c *Config) resolvePaths(baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	for i, p := range c.Model.ModelPaths {
		c.Model.ModelPaths[i] = resolve(p)
	}
	for i, p := range c.Model.ScalerPaths {
		c.Model.ScalerPaths[i] = resolve(p)
	}
	c.Model.ModelPointerFile = resolve(c.Model.ModelPointerFile)
	c.Log.File = resolve(c.Log.File)
}

// LoaderConfig builds the artifact resolution order: model candidates, then
// the pointer file.
func (m ModelConfig) LoaderConfig() ml.LoaderConfig {
	fallback, _ := ml.ParseFallbackMode(m.Fallback)
	modelResolvers := []ml.Resolver{ml.CandidatePaths(m.ModelPaths)}
	if m.ModelPointerFile != "" {
		modelResolvers = append(modelResolvers, ml.PointerFile(m.ModelPointerFile))
	}
	return ml.LoaderConfig{
		ModelResolvers:  modelResolvers,
		ScalerResolvers: []ml.Resolver{ml.CandidatePaths(m.ScalerPaths)},
		Fallback:        fallback,
		DummySeed:       m.DummySeed,
	}
}

// NoiseStdDev returns the configured mock noise spread.
func (m ModelConfig) NoiseStdDev() float64 {
	if m.MockNoiseStdDev == nil {
		return ml.DefaultMockNoiseStdDev
	}
	return *m.MockNoiseStdDev
}

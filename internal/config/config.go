package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"golos/internal/errors"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Fields   FieldMap       `yaml:"fields"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DataConfig locates the source table
type DataConfig struct {
	InputFile string `yaml:"inputFile"`
	Sheet     string `yaml:"sheet"`
}

// FieldMap names the source columns consumed by derivation
type FieldMap struct {
	ID             string `yaml:"id"`
	Age            string `yaml:"age"`
	Sex            string `yaml:"sex"`
	CardiacHistory string `yaml:"cardiacHistory"`
	Outcome        string `yaml:"outcome"`
	AdmissionDate  string `yaml:"admissionDate"`
	DischargeDate  string `yaml:"dischargeDate"`
}

// Required lists the columns that must appear in the source header
func (f FieldMap) Required() []string {
	return []string{f.Age, f.Sex, f.CardiacHistory, f.Outcome, f.AdmissionDate, f.DischargeDate}
}

// AnalysisConfig holds the frozen analysis parameters
type AnalysisConfig struct {
	Alpha           float64 `yaml:"alpha"`
	LambdaMin       float64 `yaml:"lambdaMin"`
	LambdaMax       float64 `yaml:"lambdaMax"`
	LambdaStep      float64 `yaml:"lambdaStep"`
	LogTolerance    float64 `yaml:"logTolerance"`
	ResponseOffset  float64 `yaml:"responseOffset"`
	ConfidenceLevel float64 `yaml:"confidenceLevel"`
	Workers         int     `yaml:"workers"`
	// ReductionRule is "factors" (drop whole factors absent from every significant
	// term) or "hierarchical" (keep the significant terms and their margins)
	ReductionRule string `yaml:"reductionRule"`
}

// OutputConfig controls the report adapters
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	Workbook    bool   `yaml:"workbook"`
	Markdown    bool   `yaml:"markdown"`
	HTML        bool   `yaml:"html"`
	MetricsFile string `yaml:"metricsFile"`
}

// LoggingConfig controls log verbosity
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the parameters used when nothing overrides them
func Default() Config {
	return Config{
		Data: DataConfig{Sheet: "Sheet1"},
		Fields: FieldMap{
			ID:             "id",
			Age:            "age",
			Sex:            "sex",
			CardiacHistory: "cardiac_history",
			Outcome:        "outcome",
			AdmissionDate:  "admission_date",
			DischargeDate:  "discharge_date",
		},
		Analysis: AnalysisConfig{
			Alpha:           0.05,
			LambdaMin:       -2.0,
			LambdaMax:       2.0,
			LambdaStep:      0.1,
			LogTolerance:    0.1,
			ResponseOffset:  1.0,
			ConfidenceLevel: 0.95,
			Workers:         4,
			ReductionRule:   "factors",
		},
		Output: OutputConfig{
			Dir:      "./out",
			Workbook: true,
			Markdown: true,
			HTML:     true,
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// Load reads defaults, then the YAML parameters file, then environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	if path == "" {
		path = os.Getenv("GOLOS_CONFIG")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrap(err, fmt.Sprintf("config file %s not found", path))
			}
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(errors.WithCode(errors.CodeConfigInvalid, err), "parse config")
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Data.InputFile = getEnvOrDefault("GOLOS_INPUT_FILE", cfg.Data.InputFile)
	cfg.Data.Sheet = getEnvOrDefault("GOLOS_SHEET", cfg.Data.Sheet)
	cfg.Analysis.Alpha = getEnvFloatOrDefault("GOLOS_ALPHA", cfg.Analysis.Alpha)
	cfg.Analysis.LogTolerance = getEnvFloatOrDefault("GOLOS_LOG_TOLERANCE", cfg.Analysis.LogTolerance)
	cfg.Analysis.ConfidenceLevel = getEnvFloatOrDefault("GOLOS_CONFIDENCE_LEVEL", cfg.Analysis.ConfidenceLevel)
	cfg.Analysis.Workers = getEnvIntOrDefault("GOLOS_WORKERS", cfg.Analysis.Workers)
	cfg.Analysis.ReductionRule = getEnvOrDefault("GOLOS_REDUCTION_RULE", cfg.Analysis.ReductionRule)
	cfg.Output.Dir = getEnvOrDefault("GOLOS_OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.MetricsFile = getEnvOrDefault("GOLOS_METRICS_FILE", cfg.Output.MetricsFile)
	cfg.Output.HTML = getEnvBoolOrDefault("GOLOS_HTML", cfg.Output.HTML)
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
}

// Validate rejects parameter sets the pipeline cannot run with
func (c *Config) Validate() error {
	a := c.Analysis
	if a.Alpha <= 0 || a.Alpha >= 1 {
		return errors.ConfigInvalid("alpha must be in (0,1)")
	}
	if a.ConfidenceLevel <= 0 || a.ConfidenceLevel >= 1 {
		return errors.ConfigInvalid("confidence level must be in (0,1)")
	}
	if a.LambdaStep <= 0 {
		return errors.ConfigInvalid("lambda step must be positive")
	}
	if a.LambdaMin > a.LambdaMax {
		return errors.ConfigInvalid("lambda min must not exceed lambda max")
	}
	for _, bound := range []float64{a.LambdaMin, a.LambdaMax} {
		if n := bound / a.LambdaStep; math.Abs(n-math.Round(n)) > 1e-6 {
			return errors.ConfigInvalid(fmt.Sprintf("lambda bound %g is not a multiple of step %g", bound, a.LambdaStep))
		}
	}
	if a.LogTolerance < 0 {
		return errors.ConfigInvalid("log tolerance must be non-negative")
	}
	if a.ResponseOffset < 0 {
		return errors.ConfigInvalid("response offset must be non-negative")
	}
	if a.Workers < 1 {
		return errors.ConfigInvalid("workers must be at least 1")
	}
	if a.ReductionRule != "factors" && a.ReductionRule != "hierarchical" {
		return errors.ConfigInvalid("reduction rule must be factors or hierarchical, got " + a.ReductionRule)
	}
	for _, name := range c.Fields.Required() {
		if strings.TrimSpace(name) == "" {
			return errors.ConfigInvalid("field map has an empty column name")
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

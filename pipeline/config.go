package pipeline

import (
	"math"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/bechdel/dataset"
	"github.com/YuminosukeSato/bechdel/features"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
	"github.com/YuminosukeSato/bechdel/split"
)

// EnvPrefix is the prefix of environment overrides, e.g. BECHDEL_SEED.
const EnvPrefix = "BECHDEL"

// Model names accepted in Config.Models.
const (
	ModelKNNRegression = "knn_regression"
	ModelKNNMulticlass = "knn_multiclass"
	ModelKNNBinary     = "knn_binary"
	ModelGBMMulticlass = "gbm_multiclass"
	ModelGBMBinary     = "gbm_binary"
	ModelMultinomial   = "multinomial"
	ModelLogistic      = "logistic"
)

// Report formats accepted in Config.Formats.
const (
	FormatConsole = "console"
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatPlots   = "plots"
)

// KRange is an inclusive range of neighbor counts.
type KRange struct {
	Min int `yaml:"min" envconfig:"MIN"`
	Max int `yaml:"max" envconfig:"MAX"`
}

// GBMGrid is the gradient boosting search grid.
type GBMGrid struct {
	NEstimators    []int   `yaml:"n_estimators" envconfig:"N_ESTIMATORS"`
	MaxDepths      []int   `yaml:"max_depths" envconfig:"MAX_DEPTHS"`
	LearningRate   float64 `yaml:"learning_rate" envconfig:"LEARNING_RATE"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" envconfig:"MIN_SAMPLES_LEAF"`
}

// Config holds every tunable of a run.
type Config struct {
	Inputs            dataset.Sources `yaml:"inputs" envconfig:"INPUTS"`
	OutputDir         string          `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	Seed              uint64          `yaml:"seed" envconfig:"SEED"`
	TrainProportion   float64         `yaml:"train_proportion" envconfig:"TRAIN_PROPORTION"`
	Folds             int             `yaml:"folds" envconfig:"FOLDS"`
	MinBudget         float64         `yaml:"min_budget" envconfig:"MIN_BUDGET"`
	SkipMalformedKeys bool            `yaml:"skip_malformed_keys" envconfig:"SKIP_MALFORMED_KEYS"`
	PositiveClass     int             `yaml:"positive_class" envconfig:"POSITIVE_CLASS"`
	Parallel          bool            `yaml:"parallel" envconfig:"PARALLEL"`
	LogLevel          string          `yaml:"log_level" envconfig:"LOG_LEVEL"`

	Models  []string `yaml:"models" envconfig:"MODELS"`
	Formats []string `yaml:"formats" envconfig:"FORMATS"`

	KNNRegression     KRange    `yaml:"knn_regression" envconfig:"KNN_REGRESSION"`
	KNNClassifierKs   []int     `yaml:"knn_classifier_ks" envconfig:"KNN_CLASSIFIER_KS"`
	GBM               GBMGrid   `yaml:"gbm" envconfig:"GBM"`
	MultinomialDecays []float64 `yaml:"multinomial_decays" envconfig:"MULTINOMIAL_DECAYS"`
	MaxIter           int       `yaml:"max_iter" envconfig:"MAX_ITER"`
}

// AllModels lists every model in the order the pipeline runs them.
var AllModels = []string{
	ModelKNNRegression, ModelKNNMulticlass, ModelKNNBinary,
	ModelGBMMulticlass, ModelGBMBinary, ModelMultinomial, ModelLogistic,
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Inputs: dataset.Sources{
			Bechdel:  "data/bechdel.csv",
			Metadata: "data/movies_metadata.csv",
			Ratio:    "data/gender_ratio.csv",
		},
		OutputDir:         "out",
		Seed:              1234,
		TrainProportion:   split.DefaultProportion,
		Folds:             5,
		MinBudget:         features.DefaultMinBudget,
		SkipMalformedKeys: true,
		PositiveClass:     1,
		Parallel:          true,
		LogLevel:          "info",
		Models:            append([]string(nil), AllModels...),
		Formats:           []string{FormatConsole, FormatCSV, FormatXLSX, FormatPlots},
		KNNRegression:     KRange{Min: 1, Max: 100},
		KNNClassifierKs:   []int{5, 7, 9, 11, 13, 15},
		GBM: GBMGrid{
			NEstimators:    []int{50, 100, 150},
			MaxDepths:      []int{1, 2, 3},
			LearningRate:   0.1,
			MinSamplesLeaf: 10,
		},
		MultinomialDecays: []float64{0, 1e-4, 0.1},
		MaxIter:           100,
	}
}

// LoadConfig starts from DefaultConfig, applies the YAML file at path (if
// path is not empty), then BECHDEL_* environment variables, and validates
// the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, scigoErrors.Wrapf(err, "pipeline: read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, scigoErrors.Wrapf(err, "pipeline: parse config %s", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, scigoErrors.Wrap(err, "pipeline: environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first out-of-range value as a ValidationError.
func (c Config) Validate() error {
	switch {
	case c.Inputs.Bechdel == "" || c.Inputs.Metadata == "" || c.Inputs.Ratio == "":
		return scigoErrors.NewValidationError("inputs", "all three input paths are required", c.Inputs)
	case math.IsNaN(c.TrainProportion) || c.TrainProportion <= 0 || c.TrainProportion >= 1:
		return scigoErrors.NewValidationError("train_proportion", "must be in (0, 1)", c.TrainProportion)
	case c.Folds < 2:
		return scigoErrors.NewValidationError("folds", "must be at least 2", c.Folds)
	case c.MinBudget < 0 || math.IsNaN(c.MinBudget):
		return scigoErrors.NewValidationError("min_budget", "must be non-negative", c.MinBudget)
	case c.KNNRegression.Min < 1 || c.KNNRegression.Max < c.KNNRegression.Min:
		return scigoErrors.NewValidationError("knn_regression", "need 1 <= min <= max", c.KNNRegression)
	case c.GBM.LearningRate <= 0:
		return scigoErrors.NewValidationError("gbm.learning_rate", "must be positive", c.GBM.LearningRate)
	case c.GBM.MinSamplesLeaf < 1:
		return scigoErrors.NewValidationError("gbm.min_samples_leaf", "must be at least 1", c.GBM.MinSamplesLeaf)
	case c.MaxIter < 1:
		return scigoErrors.NewValidationError("max_iter", "must be at least 1", c.MaxIter)
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return scigoErrors.NewValidationError("log_level", "unknown level", c.LogLevel)
	}

	for _, k := range c.KNNClassifierKs {
		if k < 1 {
			return scigoErrors.NewValidationError("knn_classifier_ks", "every k must be at least 1", k)
		}
	}
	for _, d := range c.GBM.MaxDepths {
		if d < 1 {
			return scigoErrors.NewValidationError("gbm.max_depths", "every depth must be at least 1", d)
		}
	}
	for _, n := range c.GBM.NEstimators {
		if n < 1 {
			return scigoErrors.NewValidationError("gbm.n_estimators", "every count must be at least 1", n)
		}
	}
	for _, d := range c.MultinomialDecays {
		if d < 0 || math.IsNaN(d) {
			return scigoErrors.NewValidationError("multinomial_decays", "decay must be non-negative", d)
		}
	}

	known := make(map[string]bool, len(AllModels))
	for _, m := range AllModels {
		known[m] = true
	}
	for _, m := range c.Models {
		if !known[m] {
			return scigoErrors.NewValidationError("models", "unknown model", m)
		}
	}
	for _, f := range c.Formats {
		switch f {
		case FormatConsole, FormatCSV, FormatXLSX, FormatPlots:
		default:
			return scigoErrors.NewValidationError("formats", "unknown report format", f)
		}
	}
	return nil
}

func (c Config) wants(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

func (c Config) enabled(model string) bool {
	for _, m := range c.Models {
		if m == model {
			return true
		}
	}
	return false
}

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.Equal(t, 0.8, cfg.TrainProportion)
	assert.Equal(t, 5, cfg.Folds)
	assert.Equal(t, 10000.0, cfg.MinBudget)
	assert.Equal(t, KRange{Min: 1, Max: 100}, cfg.KNNRegression)
	assert.Equal(t, []int{5, 7, 9, 11, 13, 15}, cfg.KNNClassifierKs)
	assert.Equal(t, []float64{0, 1e-4, 0.1}, cfg.MultinomialDecays)
	assert.Equal(t, AllModels, cfg.Models)
	assert.True(t, cfg.SkipMalformedKeys)
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bechdel.yaml")
	body := `
inputs:
  bechdel: a.csv
  metadata: b.csv
  ratio: c.csv
seed: 7
folds: 3
models: [knn_binary, logistic]
gbm:
  n_estimators: [10, 20]
  max_depths: [1]
  learning_rate: 0.2
  min_samples_leaf: 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("BECHDEL_SEED", "99")
	t.Setenv("BECHDEL_INPUTS_RATIO", "override.csv")
	t.Setenv("BECHDEL_KNN_CLASSIFIER_KS", "3,5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(99), cfg.Seed, "environment wins over the file")
	assert.Equal(t, 3, cfg.Folds)
	assert.Equal(t, "a.csv", cfg.Inputs.Bechdel)
	assert.Equal(t, "override.csv", cfg.Inputs.Ratio)
	assert.Equal(t, []string{ModelKNNBinary, ModelLogistic}, cfg.Models)
	assert.Equal(t, []int{3, 5}, cfg.KNNClassifierKs)
	assert.Equal(t, []int{10, 20}, cfg.GBM.NEstimators)
	assert.Equal(t, 0.2, cfg.GBM.LearningRate)
	assert.Equal(t, 0.8, cfg.TrainProportion, "unset keys keep their defaults")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		param string
	}{
		{"proportion", func(c *Config) { c.TrainProportion = 1 }, "train_proportion"},
		{"folds", func(c *Config) { c.Folds = 1 }, "folds"},
		{"budget", func(c *Config) { c.MinBudget = -1 }, "min_budget"},
		{"k range", func(c *Config) { c.KNNRegression = KRange{Min: 5, Max: 2} }, "knn_regression"},
		{"k grid", func(c *Config) { c.KNNClassifierKs = []int{0} }, "knn_classifier_ks"},
		{"depth", func(c *Config) { c.GBM.MaxDepths = []int{0} }, "gbm.max_depths"},
		{"decay", func(c *Config) { c.MultinomialDecays = []float64{-1} }, "multinomial_decays"},
		{"model", func(c *Config) { c.Models = []string{"svm"} }, "models"},
		{"format", func(c *Config) { c.Formats = []string{"pdf"} }, "formats"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"inputs", func(c *Config) { c.Inputs.Metadata = "" }, "inputs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var ve *scigoErrors.ValidationError
			require.True(t, scigoErrors.As(err, &ve))
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}

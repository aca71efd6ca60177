// Package dataset loads the Bechdel, metadata and gender-ratio tables,
// normalizes their schemas and joins them into one movie table.
//
// Every function returns new DataFrames; inputs are never modified.
package dataset

import (
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

// Source names used in errors and logs.
const (
	SourceBechdel  = "bechdel"
	SourceMetadata = "metadata"
	SourceRatio    = "ratio"
)

// Sources are the paths of the three input CSV files.
type Sources struct {
	Bechdel  string `yaml:"bechdel" envconfig:"BECHDEL"`
	Metadata string `yaml:"metadata" envconfig:"METADATA"`
	Ratio    string `yaml:"ratio" envconfig:"RATIO"`
}

// Raw holds the three tables as loaded, every column a string.
type Raw struct {
	Bechdel  dataframe.DataFrame
	Metadata dataframe.DataFrame
	Ratio    dataframe.DataFrame
}

// requiredColumns lists the columns each source must provide.
var requiredColumns = map[string][]string{
	SourceBechdel:  {"rating", "imdbid"},
	SourceMetadata: {"imdb_id", "id", "budget", "runtime", "genres"},
	SourceRatio:    {"id", "female_ratio", "female_director"},
}

// Load reads all three sources.
func Load(src Sources, opts ...Option) (*Raw, error) {
	bechdel, err := LoadSource(SourceBechdel, src.Bechdel, opts...)
	if err != nil {
		return nil, err
	}
	metadata, err := LoadSource(SourceMetadata, src.Metadata, opts...)
	if err != nil {
		return nil, err
	}
	ratio, err := LoadSource(SourceRatio, src.Ratio, opts...)
	if err != nil {
		return nil, err
	}

	if !hasColumn(bechdel, "year") && !hasColumn(metadata, "release_date") {
		return nil, scigoErrors.NewSchemaMismatchError(SourceMetadata, []string{"release_date"})
	}

	return &Raw{Bechdel: bechdel, Metadata: metadata, Ratio: ratio}, nil
}

// LoadSource reads one CSV file with a header row. All columns are read as
// strings; typing happens in Normalize.
func LoadSource(name, path string, opts ...Option) (dataframe.DataFrame, error) {
	logger := newOptions(opts).logger.With(log.SourceKey, name)

	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, scigoErrors.NewSourceUnavailableError(name, path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, scigoErrors.NewSourceUnavailableError(name, path, df.Err)
	}

	if missing := missingColumns(df, requiredColumns[name]); len(missing) > 0 {
		return dataframe.DataFrame{}, scigoErrors.NewSchemaMismatchError(name, missing)
	}

	logger.Info("source loaded", log.RowsOutKey, df.Nrow(), "columns", df.Ncol())
	return df, nil
}

func missingColumns(df dataframe.DataFrame, required []string) []string {
	var missing []string
	for _, col := range required {
		if !hasColumn(df, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

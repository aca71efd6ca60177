package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

// naRecord is how gota spells a missing value when a series is built from
// strings.
const naRecord = "NaN"

// NormalizeOptions controls how Normalize treats malformed identifiers.
type NormalizeOptions struct {
	// SkipMalformedKeys drops rows whose join keys cannot be parsed instead
	// of failing with a KeyCoercionError.
	SkipMalformedKeys bool
}

// CoerceIMDBKey parses an IMDb identifier of the form "tt" followed by
// digits into the integer value of the digits.
func CoerceIMDBKey(s string) (int, error) {
	s = strings.TrimSpace(s)
	digits, ok := strings.CutPrefix(s, "tt")
	if !ok || !allDigits(digits) {
		return 0, scigoErrors.NewKeyCoercionError("imdb_id", s, -1)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, scigoErrors.NewKeyCoercionError("imdb_id", s, -1)
	}
	return n, nil
}

// Normalize renames, types and trims the three raw tables so that they can
// be joined on integer keys.
func Normalize(raw *Raw, opts NormalizeOptions, logOpts ...Option) (*Raw, error) {
	if raw == nil {
		return nil, scigoErrors.NewValueError("dataset.Normalize", "raw tables are nil")
	}
	logger := newOptions(logOpts).logger.With(log.StageKey, "normalize")

	bechdel, err := normalizeBechdel(raw.Bechdel)
	if err != nil {
		return nil, err
	}
	metadata, err := normalizeMetadata(raw.Metadata, opts, logger)
	if err != nil {
		return nil, err
	}
	ratio, err := normalizeRatio(raw.Ratio, opts, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("tables normalized",
		"bechdel_rows", bechdel.Nrow(),
		"metadata_rows", metadata.Nrow(),
		"ratio_rows", ratio.Nrow(),
	)
	return &Raw{Bechdel: bechdel, Metadata: metadata, Ratio: ratio}, nil
}

func normalizeBechdel(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	df = dropIfPresent(df, "title", "id")
	df = df.Rename("bechdel", "rating").Rename("imdb_id", "imdbid")
	if df.Err != nil {
		return dataframe.DataFrame{}, scigoErrors.Wrap(df.Err, "dataset: rename bechdel columns")
	}

	// The bechdel table stores identifiers as bare digits, some sources keep
	// the "tt" prefix.
	ids := df.Col("imdb_id").Records()
	keys := make([]int, len(ids))
	for i, v := range ids {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			if n, err = CoerceIMDBKey(v); err != nil {
				return dataframe.DataFrame{}, scigoErrors.NewKeyCoercionError("imdb_id", v, i)
			}
		}
		keys[i] = n
	}

	ratings := df.Col("bechdel").Records()
	scores := make([]int, len(ratings))
	for i, v := range ratings {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 || n > 3 {
			return dataframe.DataFrame{}, scigoErrors.NewValidationError("bechdel", "rating must be an integer in [0, 3]", v)
		}
		scores[i] = n
	}

	cols := []series.Series{
		series.New(keys, series.Int, "imdb_id"),
		series.New(scores, series.Int, "bechdel"),
	}
	if hasColumn(df, "year") {
		cols = append(cols, series.New(intRecords(df.Col("year").Records()), series.Int, "year"))
	}
	return mutate(df, cols...)
}

func normalizeMetadata(df dataframe.DataFrame, opts NormalizeOptions, logger log.Logger) (dataframe.DataFrame, error) {
	df = dropIfPresent(df, "title")

	imdb := df.Col("imdb_id").Records()
	ids := df.Col("id").Records()
	var keep []int
	imdbKeys := make([]int, 0, len(imdb))
	idKeys := make([]int, 0, len(ids))
	for i := range imdb {
		k, err := CoerceIMDBKey(imdb[i])
		if err == nil {
			var id int
			if id, err = strconv.Atoi(strings.TrimSpace(ids[i])); err == nil {
				keep = append(keep, i)
				imdbKeys = append(imdbKeys, k)
				idKeys = append(idKeys, id)
				continue
			}
			err = scigoErrors.NewKeyCoercionError("id", ids[i], i)
		} else {
			err = scigoErrors.NewKeyCoercionError("imdb_id", imdb[i], i)
		}
		if !opts.SkipMalformedKeys {
			return dataframe.DataFrame{}, err
		}
	}

	if skipped := len(imdb) - len(keep); skipped > 0 {
		w := scigoErrors.NewDataQualityWarning("normalize", "malformed metadata keys", skipped, "rows dropped")
		scigoErrors.Warn(w)
		logger.Warn("malformed metadata keys dropped", log.SourceKey, SourceMetadata, "count", skipped)
		df = df.Subset(keep)
		if df.Err != nil {
			return dataframe.DataFrame{}, scigoErrors.Wrap(df.Err, "dataset: subset metadata")
		}
	}

	return mutate(df,
		series.New(imdbKeys, series.Int, "imdb_id"),
		series.New(idKeys, series.Int, "id"),
		series.New(floatRecords(df.Col("budget").Records()), series.Float, "budget"),
		series.New(floatRecords(df.Col("runtime").Records()), series.Float, "runtime"),
	)
}

func normalizeRatio(df dataframe.DataFrame, opts NormalizeOptions, logger log.Logger) (dataframe.DataFrame, error) {
	ids := df.Col("id").Records()
	var keep []int
	keys := make([]int, 0, len(ids))
	for i, v := range ids {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			if !opts.SkipMalformedKeys {
				return dataframe.DataFrame{}, scigoErrors.NewKeyCoercionError("id", v, i)
			}
			continue
		}
		keep = append(keep, i)
		keys = append(keys, n)
	}

	if skipped := len(ids) - len(keep); skipped > 0 {
		scigoErrors.Warn(scigoErrors.NewDataQualityWarning("normalize", "malformed ratio keys", skipped, "rows dropped"))
		logger.Warn("malformed ratio keys dropped", log.SourceKey, SourceRatio, "count", skipped)
		df = df.Subset(keep)
		if df.Err != nil {
			return dataframe.DataFrame{}, scigoErrors.Wrap(df.Err, "dataset: subset ratio")
		}
	}

	return mutate(df,
		series.New(keys, series.Int, "id"),
		series.New(floatRecords(df.Col("female_ratio").Records()), series.Float, "female_ratio"),
		series.New(flagRecords(df.Col("female_director").Records()), series.Int, "female_director"),
	)
}

// intRecords cleans integer-like strings; anything unparsable becomes NA.
// Values such as "2001.0" are accepted.
func intRecords(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if n, err := strconv.Atoi(v); err == nil {
			out[i] = strconv.Itoa(n)
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			out[i] = naRecord
			continue
		}
		out[i] = strconv.Itoa(int(f))
	}
	return out
}

func floatRecords(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsInf(f, 0) {
			f = math.NaN()
		}
		out[i] = f
	}
	return out
}

// flagRecords maps 0/1 style flags (numeric or true/false) to "0"/"1".
func flagRecords(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if b, err := strconv.ParseBool(v); err == nil {
			out[i] = boolRecord(b)
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) {
			out[i] = naRecord
			continue
		}
		out[i] = boolRecord(f != 0)
	}
	return out
}

func boolRecord(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mutate(df dataframe.DataFrame, cols ...series.Series) (dataframe.DataFrame, error) {
	for _, s := range cols {
		df = df.Mutate(s)
		if df.Err != nil {
			return dataframe.DataFrame{}, scigoErrors.Wrapf(df.Err, "dataset: set column %s", s.Name)
		}
	}
	return df, nil
}

func dropIfPresent(df dataframe.DataFrame, names ...string) dataframe.DataFrame {
	var present []string
	for _, n := range names {
		if hasColumn(df, n) {
			present = append(present, n)
		}
	}
	if len(present) == 0 {
		return df
	}
	return df.Drop(present)
}

package dataset

import (
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

// IrrelevantColumns are dropped after the joins when present.
var IrrelevantColumns = []string{
	"adult", "belongs_to_collection", "homepage", "original_language",
	"original_title", "overview", "popularity", "poster_path",
	"production_companies", "production_countries", "release_date",
	"revenue", "spoken_languages", "status", "tagline", "video",
	"vote_average", "vote_count", "imdb_id", "id",
}

// MergeReport describes what the joins did.
type MergeReport struct {
	BechdelRows      int
	MetadataRows     int
	RatioRows        int
	AfterFirstJoin   int
	AfterSecondJoin  int
	DuplicateIMDBIDs int // keys matched more than once on either side of join 1
	DuplicateIDs     int // same for join 2
	YearDerived      bool
}

// Merge inner-joins bechdel with metadata on imdb_id and the result with
// ratio on id, then drops IrrelevantColumns. Duplicate keys produce the cross
// product of matching rows; they are counted and reported, not resolved.
func Merge(norm *Raw, opts ...Option) (dataframe.DataFrame, *MergeReport, error) {
	if norm == nil {
		return dataframe.DataFrame{}, nil, scigoErrors.NewValueError("dataset.Merge", "tables are nil")
	}
	logger := newOptions(opts).logger.With(log.StageKey, "merge")
	rep := &MergeReport{
		BechdelRows:  norm.Bechdel.Nrow(),
		MetadataRows: norm.Metadata.Nrow(),
		RatioRows:    norm.Ratio.Nrow(),
	}

	first, dups, err := join(norm.Bechdel, norm.Metadata, "imdb_id")
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	if first.Nrow() == 0 {
		return dataframe.DataFrame{}, nil, scigoErrors.NewEmptyJoinResultError(SourceBechdel, SourceMetadata, "imdb_id")
	}
	rep.AfterFirstJoin = first.Nrow()
	rep.DuplicateIMDBIDs = dups
	warnDuplicates(logger, "imdb_id", dups)

	if !hasColumn(first, "year") {
		if !hasColumn(first, "release_date") {
			return dataframe.DataFrame{}, nil, scigoErrors.NewSchemaMismatchError(SourceMetadata, []string{"release_date"})
		}
		first = first.Mutate(series.New(yearsFromDates(first.Col("release_date").Records()), series.Int, "year"))
		if first.Err != nil {
			return dataframe.DataFrame{}, nil, scigoErrors.Wrap(first.Err, "dataset: derive year")
		}
		rep.YearDerived = true
	}

	second, dups, err := join(first, norm.Ratio, "id")
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	if second.Nrow() == 0 {
		return dataframe.DataFrame{}, nil, scigoErrors.NewEmptyJoinResultError(SourceMetadata, SourceRatio, "id")
	}
	rep.AfterSecondJoin = second.Nrow()
	rep.DuplicateIDs = dups
	warnDuplicates(logger, "id", dups)

	merged := dropIfPresent(second, IrrelevantColumns...)
	if merged.Err != nil {
		return dataframe.DataFrame{}, nil, scigoErrors.Wrap(merged.Err, "dataset: drop columns")
	}

	logger.Info("tables merged",
		log.RowsInKey, rep.BechdelRows,
		log.RowsOutKey, merged.Nrow(),
		"after_first_join", rep.AfterFirstJoin,
		"year_derived", rep.YearDerived,
	)
	return merged, rep, nil
}

// join runs gota's InnerJoin after restricting both sides to rows whose key
// appears on the other side. InnerJoin compares every pair of rows, so the
// semi-join keeps it tractable on the full metadata dump. It also returns
// the number of matched keys that occur more than once on either side.
func join(left, right dataframe.DataFrame, key string) (dataframe.DataFrame, int, error) {
	lk, err := left.Col(key).Int()
	if err != nil {
		return dataframe.DataFrame{}, 0, scigoErrors.Wrapf(err, "dataset: %s is not an integer key", key)
	}
	rk, err := right.Col(key).Int()
	if err != nil {
		return dataframe.DataFrame{}, 0, scigoErrors.Wrapf(err, "dataset: %s is not an integer key", key)
	}

	lCount := counts(lk)
	rCount := counts(rk)

	dups := 0
	for k, n := range lCount {
		if m, ok := rCount[k]; ok && (n > 1 || m > 1) {
			dups++
		}
	}

	lKeep := matching(lk, rCount)
	rKeep := matching(rk, lCount)
	if len(lKeep) == 0 || len(rKeep) == 0 {
		return dataframe.New(series.New([]int{}, series.Int, key)), dups, nil
	}
	if left, err = subset(left, lKeep); err != nil {
		return dataframe.DataFrame{}, 0, err
	}
	if right, err = subset(right, rKeep); err != nil {
		return dataframe.DataFrame{}, 0, err
	}

	out := left.InnerJoin(right, key)
	if out.Err != nil {
		return dataframe.DataFrame{}, 0, scigoErrors.Wrapf(out.Err, "dataset: join on %s", key)
	}
	return out, dups, nil
}

// matching returns the row indices whose key occurs in other.
func matching(keys []int, other map[int]int) []int {
	keep := make([]int, 0, len(keys))
	for i, k := range keys {
		if _, ok := other[k]; ok {
			keep = append(keep, i)
		}
	}
	return keep
}

func subset(df dataframe.DataFrame, rows []int) (dataframe.DataFrame, error) {
	if len(rows) == df.Nrow() {
		return df, nil
	}
	out := df.Subset(rows)
	if out.Err != nil {
		return dataframe.DataFrame{}, scigoErrors.Wrap(out.Err, "dataset: semi join")
	}
	return out, nil
}

func counts(keys []int) map[int]int {
	m := make(map[int]int, len(keys))
	for _, k := range keys {
		m[k]++
	}
	return m
}

func warnDuplicates(logger log.Logger, key string, dups int) {
	if dups == 0 {
		return
	}
	scigoErrors.Warn(scigoErrors.NewDataQualityWarning("merge", "duplicate join key "+key, dups, "cross product kept"))
	logger.Warn("duplicate join keys", "key", key, "count", dups)
}

// yearsFromDates takes the leading four-digit year of ISO dates.
func yearsFromDates(dates []string) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		d = strings.TrimSpace(d)
		if len(d) < 4 || !allDigits(d[:4]) {
			out[i] = naRecord
			continue
		}
		y, _ := strconv.Atoi(d[:4])
		out[i] = strconv.Itoa(y)
	}
	return out
}

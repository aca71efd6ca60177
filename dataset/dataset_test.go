package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

func init() {
	scigoErrors.SetWarningHandler(func(error) {})
}

const (
	bechdelCSV = `year,id,imdbid,title,rating
1999,10,0000001,Alpha,3
2001,11,0000002,Beta,1
2003,12,0000003,Gamma,2
2005,13,0000009,Orphan,3
`
	metadataCSV = `adult,budget,genres,id,imdb_id,release_date,runtime,title,vote_count
False,1000000,"[{'id': 18, 'name': 'Drama'}]",100,tt0000001,1999-05-01,120,Alpha,10
False,50000,"[{'id': 35, 'name': 'Comedy'}]",200,tt0000002,2001-02-03,95,Beta,3
False,20000000,"[{'id': 28, 'name': 'Action'}]",300,tt0000003,2003-07-09,,Gamma,7
False,1,,1997-08-20,,,,broken line,
`
	ratioCSV = `id,female_ratio,female_director
100,0.5,1
200,0.25,0
300,0.1,0
`
)

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func fixtureSources(t *testing.T) Sources {
	t.Helper()
	return Sources{
		Bechdel:  writeFixture(t, "bechdel.csv", bechdelCSV),
		Metadata: writeFixture(t, "metadata.csv", metadataCSV),
		Ratio:    writeFixture(t, "ratio.csv", ratioCSV),
	}
}

func TestCoerceIMDBKey(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"tt0000001", 1, false},
		{"tt0114709", 114709, false},
		{" tt42 ", 42, false},
		{"0114709", 0, true},
		{"tt", 0, true},
		{"ttabc", 0, true},
		{"", 0, true},
		{"1997-08-20", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CoerceIMDBKey(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, scigoErrors.ErrKeyCoercion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadWithLogger(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)

	_, err := Load(fixtureSources(t), WithLogger(logger.With(log.RunIDKey, "r1")))
	require.NoError(t, err)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	sources := map[any]bool{}
	for _, e := range entries {
		if e["message"] == "source loaded" {
			assert.Equal(t, "r1", e[log.RunIDKey])
			sources[e[log.SourceKey]] = true
		}
	}
	assert.Len(t, sources, 3)
}

func TestLoadMissingFile(t *testing.T) {
	src := fixtureSources(t)
	src.Ratio = filepath.Join(t.TempDir(), "nope.csv")

	_, err := Load(src)
	require.Error(t, err)
	assert.ErrorIs(t, err, scigoErrors.ErrSourceUnavailable)
}

func TestLoadSchemaMismatch(t *testing.T) {
	path := writeFixture(t, "ratio.csv", "id,female_ratio\n1,0.5\n")

	_, err := LoadSource(SourceRatio, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, scigoErrors.ErrSchemaMismatch)

	var sm *scigoErrors.SchemaMismatchError
	require.True(t, scigoErrors.As(err, &sm))
	assert.Equal(t, []string{"female_director"}, sm.Missing)
}

func TestNormalize(t *testing.T) {
	raw, err := Load(fixtureSources(t))
	require.NoError(t, err)

	norm, err := Normalize(raw, NormalizeOptions{SkipMalformedKeys: true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"year", "imdb_id", "bechdel"}, norm.Bechdel.Names())
	ids, err := norm.Bechdel.Col("imdb_id").Int()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 9}, ids)

	assert.Equal(t, 3, norm.Metadata.Nrow(), "broken line dropped")
	assert.NotContains(t, norm.Metadata.Names(), "title")
	keys, err := norm.Metadata.Col("imdb_id").Int()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, keys)
	assert.True(t, norm.Metadata.Col("runtime").Elem(2).IsNA())

	flags, err := norm.Ratio.Col("female_director").Int()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0}, flags)

	// raw tables are untouched
	assert.Contains(t, raw.Bechdel.Names(), "rating")
	assert.Equal(t, 4, raw.Metadata.Nrow())
}

func TestNormalizeStrictKeys(t *testing.T) {
	raw, err := Load(fixtureSources(t))
	require.NoError(t, err)

	_, err = Normalize(raw, NormalizeOptions{SkipMalformedKeys: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, scigoErrors.ErrKeyCoercion)
}

func TestNormalizeBadBechdelKey(t *testing.T) {
	src := fixtureSources(t)
	src.Bechdel = writeFixture(t, "bechdel.csv", "imdbid,rating\nabc,3\n")
	raw, err := Load(src)
	require.NoError(t, err)

	_, err = Normalize(raw, NormalizeOptions{SkipMalformedKeys: true})
	assert.ErrorIs(t, err, scigoErrors.ErrKeyCoercion)
}

func TestMerge(t *testing.T) {
	raw, err := Load(fixtureSources(t))
	require.NoError(t, err)
	norm, err := Normalize(raw, NormalizeOptions{SkipMalformedKeys: true})
	require.NoError(t, err)

	merged, rep, err := Merge(norm)
	require.NoError(t, err)

	assert.Equal(t, 3, merged.Nrow())
	assert.LessOrEqual(t, merged.Nrow(), norm.Bechdel.Nrow())
	assert.Equal(t, 3, rep.AfterFirstJoin)
	assert.Equal(t, 3, rep.AfterSecondJoin)
	assert.False(t, rep.YearDerived)

	names := merged.Names()
	for _, dropped := range []string{"imdb_id", "id", "adult", "release_date", "vote_count"} {
		assert.NotContains(t, names, dropped)
	}
	for _, kept := range []string{"bechdel", "year", "budget", "runtime", "genres", "female_ratio", "female_director"} {
		assert.Contains(t, names, kept)
	}

	scores, err := merged.Col("bechdel").Int()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{3, 1, 2}, scores)
}

func TestMergeDerivesYear(t *testing.T) {
	src := fixtureSources(t)
	src.Bechdel = writeFixture(t, "bechdel.csv", "imdbid,rating\n0000001,3\n0000002,0\n")
	raw, err := Load(src)
	require.NoError(t, err)
	norm, err := Normalize(raw, NormalizeOptions{SkipMalformedKeys: true})
	require.NoError(t, err)

	merged, rep, err := Merge(norm)
	require.NoError(t, err)
	assert.True(t, rep.YearDerived)

	years, err := merged.Col("year").Int()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1999, 2001}, years)
}

func TestMergeDuplicateKeysCrossProduct(t *testing.T) {
	src := fixtureSources(t)
	src.Ratio = writeFixture(t, "ratio.csv", "id,female_ratio,female_director\n100,0.5,1\n100,0.4,1\n200,0.25,0\n")
	raw, err := Load(src)
	require.NoError(t, err)
	norm, err := Normalize(raw, NormalizeOptions{SkipMalformedKeys: true})
	require.NoError(t, err)

	merged, rep, err := Merge(norm)
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Nrow(), "id 100 appears twice, id 300 not at all")
	assert.Equal(t, 1, rep.DuplicateIDs)
}

func TestMergeEmptyJoin(t *testing.T) {
	src := fixtureSources(t)
	src.Ratio = writeFixture(t, "ratio.csv", "id,female_ratio,female_director\n999,0.5,1\n")
	raw, err := Load(src)
	require.NoError(t, err)
	norm, err := Normalize(raw, NormalizeOptions{SkipMalformedKeys: true})
	require.NoError(t, err)

	_, _, err = Merge(norm)
	require.Error(t, err)
	assert.ErrorIs(t, err, scigoErrors.ErrEmptyJoinResult)
}

package writer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"lotscrape/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")
	w, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())
	assert.DirExists(t, dir)
}

func TestWrite(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	rec := types.Record{
		"HPD_A Violations":   2,
		"HPD_Stories":        "6",
		"BISWEB_Total Value": "$42,162,000",
		"HPD_Litigation":     "Open, pending",
	}
	a, err := w.Write(rec)
	require.NoError(t, err)

	assert.Regexp(t, `^building_data_[0-9a-f]{32}\.csv$`, a.Name)
	assert.Equal(t, filepath.Join(w.Dir(), a.Name), a.Path)

	rows := readCSV(t, a.Path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"BISWEB_Total Value", "HPD_A Violations", "HPD_Litigation", "HPD_Stories"}, rows[0])
	assert.Equal(t, []string{"$42,162,000", "2", "Open, pending", "6"}, rows[1])
}

func TestWriteTwiceGivesTwoFiles(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	rec := types.Record{"HPD_A Violations": 1}
	first, err := w.Write(rec)
	require.NoError(t, err)
	second, err := w.Write(rec)
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
	assert.FileExists(t, first.Path)
	assert.FileExists(t, second.Path)
	assert.Equal(t, readCSV(t, first.Path), readCSV(t, second.Path))
}

func TestPath(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	a, err := w.Write(types.Record{"x": "y"})
	require.NoError(t, err)

	p, err := w.Path(a.Name)
	require.NoError(t, err)
	assert.Equal(t, a.Path, p)

	for _, name := range []string{
		"building_data_00000000000000000000000000000000.csv",
		"../" + a.Name,
		"..%2f" + a.Name,
		"/etc/passwd",
		"",
		"notes.txt",
	} {
		_, err := w.Path(name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	require.NoError(t, os.Remove(a.Path))
	_, err = w.Path(a.Name)
	assert.ErrorIs(t, err, ErrNotFound)
}

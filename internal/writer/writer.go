package writer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"lotscrape/internal/types"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrNotFound is returned for export names that do not exist or are not
// export names at all
var ErrNotFound = errors.New("file not found")

var artifactName = regexp.MustCompile(`^building_data_[0-9a-f]{32}\.csv$`)

// Artifact is a written export
type Artifact struct {
	Name string
	Path string
}

// CSVWriter writes one-row CSV exports into an output directory
type CSVWriter struct {
	outputDir string
}

// New creates a new CSVWriter, creating outputDir if needed
func New(outputDir string) (*CSVWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVWriter{outputDir: outputDir}, nil
}

// Dir returns the output directory
func (w *CSVWriter) Dir() string { return w.outputDir }

// Write stores rec as a header row of its sorted keys and one data row.
// Every call creates a new file.
func (w *CSVWriter) Write(rec types.Record) (Artifact, error) {
	name := newName()
	path := filepath.Join(w.outputDir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create file: %w", err)
	}

	keys := rec.Keys()
	row := make([]string, len(keys))
	for i, k := range keys {
		row[i] = rec.Format(k)
	}

	cw := csv.NewWriter(file)
	if err := cw.WriteAll([][]string{keys, row}); err != nil {
		file.Close()
		os.Remove(path)
		return Artifact{}, fmt.Errorf("failed to write export: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("failed to write export: %w", err)
	}

	log.Debug("Export written", "file", name, "columns", len(keys))
	return Artifact{Name: name, Path: path}, nil
}

// Path resolves an export name to a file in the output directory
func (w *CSVWriter) Path(name string) (string, error) {
	if !artifactName.MatchString(name) {
		return "", ErrNotFound
	}
	path := filepath.Join(w.outputDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

func newName() string {
	return "building_data_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".csv"
}

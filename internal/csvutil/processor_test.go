package csvutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Title  string
	Author string
}

func parseRow(record []string) (row, error) {
	if len(record) < 2 || record[0] == "" {
		return row{}, fmt.Errorf("bad record: %v", record)
	}
	return row{Title: record[0], Author: record[1]}, nil
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProcessCSV(t *testing.T) {
	path := writeCSV(t, "Title,Author\nDune,Frank Herbert\nHyperion,Dan Simmons\n")

	rows, err := ProcessCSV(path, parseRow, ProcessorOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, row{Title: "Dune", Author: "Frank Herbert"}, rows[0])
}

func TestProcessCSVSkipInvalid(t *testing.T) {
	path := writeCSV(t, "Title,Author\n,missing title\nDune,Frank Herbert\n")

	rows, err := ProcessCSV(path, parseRow, ProcessorOptions{SkipInvalid: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dune", rows[0].Title)
}

func TestProcessCSVInvalidRecordFails(t *testing.T) {
	path := writeCSV(t, "Title,Author\n,missing title\n")

	_, err := ProcessCSV(path, parseRow, ProcessorOptions{})
	require.Error(t, err)
}

func TestProcessCSVEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := ProcessCSV(path, parseRow, ProcessorOptions{})
	require.Error(t, err)
}

func TestProcessCSVMissingFile(t *testing.T) {
	_, err := ProcessCSV(filepath.Join(t.TempDir(), "nope.csv"), parseRow, ProcessorOptions{})
	require.Error(t, err)
}

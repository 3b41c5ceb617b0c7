// Package storage provides the CSV-backed persistence adapter.
//
// Both tables are written with whole-file-overwrite semantics: every save
// rewrites the complete file from the in-memory snapshot, no append, no
// diff. Writes go to a temp file in the same directory followed by a rename
// so a crash mid-save never leaves a truncated table behind.
//
// Load is fail-fast: one malformed row aborts the whole load and surfaces
// the error. A missing file is not an error - the table loads empty and a
// header-only file is created in its place.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/tallybot/tallybot/internal/tally"
)

// Column headers. Loads verify them, saves always write them.
var (
	tallyHeader  = []string{"User ID", "User Name", "Reactions Received"}
	optOutHeader = []string{"User ID"}
)

// CSVStore reads and writes the tally and opt-out tables.
type CSVStore struct {
	tallyPath  string
	optOutPath string
}

// NewCSVStore creates a store over the two table paths.
func NewCSVStore(tallyPath, optOutPath string) *CSVStore {
	return &CSVStore{tallyPath: tallyPath, optOutPath: optOutPath}
}

// LoadTallies reads the full tally table.
//
// Display names are not rewritten on load; a name persisted as "Unknown"
// stays that way until the tracker re-resolves it.
func (s *CSVStore) LoadTallies() ([]tally.Tally, error) {
	records, err := s.load(s.tallyPath, tallyHeader)
	if err != nil {
		return nil, err
	}

	tallies := make([]tally.Tally, 0, len(records))
	for i, rec := range records {
		if len(rec) != 3 {
			return nil, fmt.Errorf("load tallies: row %d: expected 3 columns, got %d", i+2, len(rec))
		}
		userID, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("load tallies: row %d: user id %q: %w", i+2, rec[0], err)
		}
		count, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("load tallies: row %d: count %q: %w", i+2, rec[2], err)
		}
		tallies = append(tallies, tally.Tally{UserID: userID, DisplayName: rec[1], Count: count})
	}
	return tallies, nil
}

// SaveTallies overwrites the tally table with the given snapshot.
// Display names are NFC-normalized so round-trips are byte-stable.
func (s *CSVStore) SaveTallies(tallies []tally.Tally) error {
	rows := make([][]string, 0, len(tallies))
	for _, entry := range tallies {
		rows = append(rows, []string{
			strconv.FormatInt(entry.UserID, 10),
			norm.NFC.String(entry.DisplayName),
			strconv.FormatInt(entry.Count, 10),
		})
	}
	if err := writeFile(s.tallyPath, tallyHeader, rows); err != nil {
		return fmt.Errorf("save tallies: %w", err)
	}
	return nil
}

// LoadOptOuts reads the full opt-out table.
func (s *CSVStore) LoadOptOuts() ([]int64, error) {
	records, err := s.load(s.optOutPath, optOutHeader)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(records))
	for i, rec := range records {
		if len(rec) != 1 {
			return nil, fmt.Errorf("load opt-outs: row %d: expected 1 column, got %d", i+2, len(rec))
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("load opt-outs: row %d: user id %q: %w", i+2, rec[0], err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, nil
}

// SaveOptOuts overwrites the opt-out table with the given set.
func (s *CSVStore) SaveOptOuts(userIDs []int64) error {
	rows := make([][]string, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, []string{strconv.FormatInt(id, 10)})
	}
	if err := writeFile(s.optOutPath, optOutHeader, rows); err != nil {
		return fmt.Errorf("save opt-outs: %w", err)
	}
	return nil
}

// load reads all data rows from a table file, verifying the header.
// A missing file creates a header-only file and returns no rows.
func (s *CSVStore) load(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeFile(path, header, nil); err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // column counts are validated per table

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: missing header row", path)
	}
	if !headerMatches(records[0], header) {
		return nil, fmt.Errorf("read %s: unexpected header %v", path, records[0])
	}
	return records[1:], nil
}

func headerMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// writeFile rewrites a table atomically: temp file in the target directory,
// flush, then rename over the old file.
func writeFile(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write rows: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

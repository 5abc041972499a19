// Package importlog keeps an append-only CSV trail of ledger changes made by
// imports and batch deletions.
package importlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Actions recorded in the log.
const (
	ActionCommit = "commit"
	ActionDelete = "delete_batch"
)

// Entry is one row in the import log.
type Entry struct {
	Timestamp time.Time
	Action    string
	BatchID   string
	AccountID string
	Filename  string
	Inserted  int
	Removed   int
	Kept      int
}

// Header is the CSV header for import-log.csv.
const Header = "timestamp,action,batch_id,account_id,filename,inserted,removed,kept"

// FileName is the log file inside the log directory.
const FileName = "import-log.csv"

const (
	numFields    = 8
	colTimestamp = 0
	colAction    = 1
	colBatchID   = 2
	colAccount   = 3
	colFilename  = 4
	colInserted  = 5
	colRemoved   = 6
	colKept      = 7
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colAction] = e.Action
	row[colBatchID] = e.BatchID
	row[colAccount] = e.AccountID
	row[colFilename] = e.Filename
	row[colInserted] = strconv.Itoa(e.Inserted)
	row[colRemoved] = strconv.Itoa(e.Removed)
	row[colKept] = strconv.Itoa(e.Kept)
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	e := Entry{
		Timestamp: ts,
		Action:    record[colAction],
		BatchID:   record[colBatchID],
		AccountID: record[colAccount],
		Filename:  record[colFilename],
	}
	counts := []struct {
		col int
		dst *int
	}{
		{colInserted, &e.Inserted},
		{colRemoved, &e.Removed},
		{colKept, &e.Kept},
	}
	for _, c := range counts {
		n, err := strconv.Atoi(record[c.col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing count %q: %w", record[c.col], err)
		}
		*c.dst = n
	}
	return e, nil
}

// Append writes entries to <dir>/import-log.csv, creating the directory, file
// and header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/import-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ForAccount filters entries to one account, keeping order.
func ForAccount(entries []Entry, accountID string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

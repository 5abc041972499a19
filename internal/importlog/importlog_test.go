package importlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp: testTime,
		Action:    ActionCommit,
		BatchID:   "0b6f1c9e-4e0e-4d55-9d39-8f0f0a3c2b11",
		AccountID: "chk-1234",
		Filename:  "january, 2025.ofx",
		Inserted:  3,
		Removed:   1,
		Kept:      0,
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionCommit, entries[0].Action)
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := testEntry()
	e2.Action = ActionDelete
	e2.Inserted = 0
	e2.Removed = 3
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionCommit, entries[0].Action)
	assert.Equal(t, ActionDelete, entries[1].Action)
	assert.Equal(t, 3, entries[1].Removed)
}

func TestRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := testEntry()
	require.NoError(t, Append(dir, []Entry{original}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	got.Timestamp = original.Timestamp
	assert.Equal(t, original, got)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(Header+"\n"), 0o644))

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_BadFieldCount(t *testing.T) {
	_, err := UnmarshalEntry([]string{"one", "two"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 8 fields")
}

func TestUnmarshalEntry_BadCount(t *testing.T) {
	row := MarshalEntry(testEntry())
	row[colInserted] = "three"
	_, err := UnmarshalEntry(row)
	assert.ErrorContains(t, err, "parsing count")
}

func TestTimestampFormat(t *testing.T) {
	row := MarshalEntry(testEntry())
	assert.Equal(t, "2025-01-15T10:30:00Z", row[colTimestamp])
}

func TestAppend_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestForAccount(t *testing.T) {
	a := testEntry()
	b := testEntry()
	b.AccountID = "sav-9999"
	got := ForAccount([]Entry{a, b, a}, "chk-1234")
	assert.Len(t, got, 2)
}
